package fan

import (
	"github.com/markusressel/nctfan/cmd/global"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/spf13/cobra"
)

var fanId int

var Command = &cobra.Command{
	Use:              "fan",
	Short:            "Fan channel related commands",
	Long:             ``,
	TraverseChildren: true,
}

func init() {
	Command.PersistentFlags().IntVarP(
		&fanId,
		"id", "i",
		0,
		"Fan channel of the chip ([1..5])",
	)
	_ = Command.MarkPersistentFlagRequired("id")
}

func getChannel(id int) (*fans.Channel, error) {
	global.LoadConfig()
	hardware, err := global.LoadHardware()
	if err != nil {
		return nil, err
	}
	return hardware.Channel(id)
}
