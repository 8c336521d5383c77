package fan

import (
	"fmt"

	"github.com/markusressel/nctfan/internal/fans"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Get/Set the control mode of a fan channel",
	Long: `Accepts the raw pwm_enable value or one of: off, manual, curve, rpm, bios.
Mode 4 is not supported by the chip.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()

		channel, err := getChannel(fanId)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			mode, err := fans.ParseControlMode(args[0])
			if err != nil {
				return err
			}
			if err = channel.SetMode(mode); err != nil {
				return err
			}
		}

		mode, err := channel.GetMode()
		if err != nil {
			return err
		}
		fmt.Printf("%s, %s (%d)", mode, mode.Description(), mode)
		return nil
	},
}

func init() {
	Command.AddCommand(modeCmd)
}
