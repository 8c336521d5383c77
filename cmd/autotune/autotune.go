package autotune

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/guptarohit/asciigraph"
	"github.com/markusressel/nctfan/cmd/global"
	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/configuration"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/persistence"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var (
	fanIds     string
	tempSource string
	profile    string
	apply      bool
)

var Command = &cobra.Command{
	Use:   "autotune",
	Short: "Calibrate fan channels and generate curves",
	Long: `Profiles the temperature source, sweeps every given channel through a set of duty cycles
and generates a curve from the measured response. The daemon should not be running at the same time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := util.ParseIntList(fanIds)
		if err != nil {
			return err
		}

		global.LoadConfig()
		hardware, err := global.LoadHardware()
		if err != nil {
			return err
		}

		config := configuration.CurrentConfig.AutoTune
		engine := autotune.NewEngine(hardware.Port, fans.AsFans(hardware.Channels), autotune.Config{
			ProfilingSamples:   config.ProfilingSamples,
			ProfilingInterval:  config.ProfilingInterval,
			SettleTime:         config.SettleTime,
			ModeSwitchDelay:    config.ModeSwitchDelay,
			MaxSafeTemperature: config.MaxSafeTemperature,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session, err := engine.Run(ctx, autotune.Request{
			ChannelIds: ids,
			TempSource: tempSource,
			Profile:    profile,
		})
		if err != nil {
			return err
		}
		if len(session.Error) > 0 {
			return fmt.Errorf("%s", session.Error)
		}

		printSession(session)

		if apply {
			return applySession(session)
		}
		return nil
	},
}

func printSession(session *autotune.Session) {
	if session.TempProfile != nil {
		temps := session.TempProfile
		ui.Printfln("Temperature: idle %.1f°C, min %.1f°C, max %.1f°C, avg %.1f°C",
			temps.Idle, temps.Min, temps.Max, temps.Avg)
	}

	for _, id := range util.SortedKeys(session.Calibration) {
		result := session.Calibration[id]

		ui.Printfln("")
		ui.Printfln("Fan %d", id)
		tableString, err := global.RenderTable(table.Table{
			Headers: []string{"", ""},
			Rows: [][]string{
				{"Start PWM", strconv.Itoa(result.StartPwm)},
				{"Max RPM", strconv.Itoa(result.MaxRpm)},
			},
		})
		if err != nil {
			ui.Fatal("Error printing table: %v", err)
		}
		ui.Printfln(tableString)

		pwms := util.SortedKeys(result.PwmRpmMap)
		if len(pwms) <= 1 {
			ui.Printfln("Not enough measurements for a graph")
			continue
		}
		values := make([]float64, 0, len(pwms))
		for _, pwm := range pwms {
			values = append(values, float64(result.PwmRpmMap[pwm]))
		}
		caption := "RPM / PWM"
		graph := asciigraph.Plot(values, asciigraph.Height(15), asciigraph.Width(100), asciigraph.Caption(caption))
		ui.Printfln(graph)

		if curve, ok := session.Curves[id]; ok {
			rows := make([][]string, 0, len(curve))
			for _, point := range curve {
				rows = append(rows, []string{
					strconv.Itoa(point.Point),
					fmt.Sprintf("%.1f°C", point.Temp),
					strconv.Itoa(point.Pwm),
				})
			}
			tableString, err = global.RenderTable(table.Table{
				Headers: []string{"Point", "Temp", "PWM"},
				Rows:    rows,
			})
			if err != nil {
				ui.Fatal("Error printing table: %v", err)
			}
			ui.Printfln(tableString)
		}
	}
}

// applySession stores the generated curves the same way the api does
func applySession(session *autotune.Session) error {
	store := settings.NewStore(configuration.CurrentConfig.SettingsPath)
	if err := store.Load(); err != nil {
		return err
	}
	if err := store.ApplyCalibration(session); err != nil {
		return err
	}

	history := persistence.NewPersistence(configuration.CurrentConfig.DbPath)
	err := history.Init()
	if err == nil {
		err = history.SaveCalibration(session.Record())
	}
	if err != nil {
		ui.Warning("Unable to store calibration history: %v", err)
	}

	ui.Success("Curves applied to %s", store.Path())
	return nil
}

func init() {
	Command.Flags().StringVarP(&fanIds, "fans", "f", "", "Comma separated list of fan channels to calibrate, e.g. 1,2")
	Command.Flags().StringVarP(&tempSource, "source", "s", "", "Temperature input to profile, e.g. /sys/class/hwmon/hwmon3/temp1_input")
	Command.Flags().StringVarP(&profile, "profile", "p", autotune.DefaultProfile, "Curve profile: silent, balanced or performance")
	Command.Flags().BoolVar(&apply, "apply", false, "Store the generated curves in the settings file")
	_ = Command.MarkFlagRequired("fans")
	_ = Command.MarkFlagRequired("source")
}
