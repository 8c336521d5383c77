package fan

import (
	"github.com/markusressel/nctfan/cmd/global"
	"github.com/markusressel/nctfan/internal/configuration"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/persistence"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the stored calibration of a fan channel",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fans.ValidateChannelId(fanId); err != nil {
			return err
		}
		global.LoadConfig()

		dbPath := configuration.CurrentConfig.DbPath
		ui.Info("Using persistence at: %s", dbPath)

		p := persistence.NewPersistence(dbPath)
		err := p.DeleteCalibration(fanId)
		if err == nil {
			ui.Success("Done!")
		}
		return err
	},
}

func init() {
	Command.AddCommand(resetCmd)
}
