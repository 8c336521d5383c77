package curve

import (
	"github.com/spf13/cobra"
)

var fanId int

var Command = &cobra.Command{
	Use:              "curve",
	Short:            "Saved curve related commands",
	TraverseChildren: true,
}

func init() {
	Command.PersistentFlags().IntVarP(
		&fanId,
		"id", "i",
		0,
		"Only show the curve of this fan channel",
	)
}
