package fan

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rpmCmd = &cobra.Command{
	Use:   "rpm",
	Short: "Get the current RPM reading of a fan",
	Long:  `When a value is given it is written as target speed, used while the channel is in target rpm mode.`,
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()

		channel, err := getChannel(fanId)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			rpm, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			return channel.SetTargetRpm(rpm)
		}

		rpm, err := channel.GetRpm()
		if err != nil {
			return err
		}
		fmt.Printf("%d", rpm)
		return nil
	},
}

func init() {
	Command.AddCommand(rpmCmd)
}
