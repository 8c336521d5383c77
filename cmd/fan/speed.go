package fan

import (
	"fmt"
	"strconv"

	"github.com/markusressel/nctfan/internal/fans"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var speedCmd = &cobra.Command{
	Use:   "speed",
	Short: "Get/Set the current duty cycle of a fan to the given PWM value ([0..255])",
	Long:  `The value only takes effect while the channel is in manual mode.`,
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()

		channel, err := getChannel(fanId)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			pwmValue, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			if err = fans.ValidatePwm(pwmValue); err != nil {
				return err
			}
			return channel.SetPwm(pwmValue)
		}

		pwm, err := channel.GetPwm()
		if err != nil {
			return err
		}
		fmt.Printf("%d", pwm)
		return nil
	},
}

func init() {
	Command.AddCommand(speedCmd)
}
