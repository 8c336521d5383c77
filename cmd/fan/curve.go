package fan

import (
	"fmt"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/markusressel/nctfan/cmd/global"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Print the curve points currently stored in the chip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, err := getChannel(fanId)
		if err != nil {
			return err
		}

		curve, err := channel.GetCurve()
		if err != nil {
			return err
		}

		ui.Printfln("Fan %d", fanId)
		printCurve(curve)
		return nil
	},
}

func printCurve(curve curves.Curve) {
	var rows [][]string
	for _, point := range curve {
		rows = append(rows, []string{
			strconv.Itoa(point.Point),
			fmt.Sprintf("%.1f°C", point.Temp),
			strconv.Itoa(point.Pwm),
			fmt.Sprintf("%.1f%%", util.Percentage(point.Pwm, curves.MaxPwmValue)),
		})
	}
	tableString, err := global.RenderTable(table.Table{
		Headers: []string{"Point", "Temp", "PWM", "Duty"},
		Rows:    rows,
	})
	if err != nil {
		ui.Fatal("Error printing table: %v", err)
	}
	ui.Printfln(tableString)

	if len(curve) < 2 {
		ui.Printfln("Not enough points for a graph")
		return
	}

	// duty cycle for every °C between the first and the last point
	sorted := curve.Sorted()
	var values []float64
	for temp := int(sorted[0].Temp); temp <= int(sorted[len(sorted)-1].Temp); temp++ {
		values = append(values, float64(curves.Evaluate(float64(temp), curve)))
	}
	caption := fmt.Sprintf("PWM / Temp (%d°C - %d°C)", int(sorted[0].Temp), int(sorted[len(sorted)-1].Temp))
	graph := asciigraph.Plot(values, asciigraph.Height(15), asciigraph.Width(100), asciigraph.Caption(caption))
	ui.Printfln(graph)
}

func init() {
	Command.AddCommand(curveCmd)
}
