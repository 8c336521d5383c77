package curve

import (
	"fmt"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/markusressel/nctfan/cmd/global"
	"github.com/markusressel/nctfan/internal/configuration"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the saved curves of all fan channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		global.LoadConfig()

		store := settings.NewStore(configuration.CurrentConfig.SettingsPath)
		if err := store.Load(); err != nil {
			return err
		}
		saved := store.Snapshot()

		ids := util.SortedKeys(saved.Curves)
		if fanId != 0 {
			if err := fans.ValidateChannelId(fanId); err != nil {
				return err
			}
			ids = []int{fanId}
		}

		for idx, id := range ids {
			if idx > 0 {
				ui.Printfln("")
				ui.Printfln("")
			}
			curve := saved.Curve(id)

			source := "chip"
			if config, ok := saved.SoftwareControl[id]; ok && config.Enabled {
				source = config.TempSource
				curve = config.Curve
			}

			// print table
			tableString, err := global.RenderTable(table.Table{
				Headers: []string{"ID", "Name", "Mode", "Temperature"},
				Rows: [][]string{
					{strconv.Itoa(id), saved.FanName(id), saved.FanMode(id).String(), source},
				},
			})
			if err != nil {
				return err
			}
			ui.Printfln(tableString)

			var rows [][]string
			for _, point := range curve {
				rows = append(rows, []string{strconv.Itoa(point.Point), fmt.Sprintf("%.1f°C", point.Temp), strconv.Itoa(point.Pwm)})
			}
			tableString, err = global.RenderTable(table.Table{
				Headers: []string{"Point", "Temp", "PWM"},
				Rows:    rows,
			})
			if err != nil {
				return err
			}
			ui.Printfln(tableString)

			if len(curve) < 2 {
				continue
			}
			sorted := curve.Sorted()
			start := int(sorted[0].Temp)
			stop := int(sorted[len(sorted)-1].Temp)
			values := make([]float64, 0, stop-start+1)
			for temp := start; temp <= stop; temp++ {
				values = append(values, float64(curves.Evaluate(float64(temp), curve)))
			}

			caption := fmt.Sprintf("PWM / Temp (%d°C - %d°C)", start, stop)
			graph := asciigraph.Plot(values, asciigraph.Height(15), asciigraph.Width(100), asciigraph.Caption(caption))
			ui.Printfln(graph)
		}

		return nil
	},
}

func init() {
	Command.AddCommand(listCmd)
}
