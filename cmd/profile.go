package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yaswanthhh/ev-charge-optimizer/core/optimizer"
)

var (
	profileConnector   int
	profileKW          []float64
	profileStepSeconds int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the SetChargingProfile message for one connector",
	RunE:  profile,
}

func init() {
	profileCmd.Flags().IntVar(&profileConnector, "connector", 1, "connector id")
	profileCmd.Flags().Float64SliceVar(&profileKW, "kw", nil, "power per step in kW")
	profileCmd.Flags().IntVar(&profileStepSeconds, "step-seconds", 900, "step length in seconds")
	rootCmd.AddCommand(profileCmd)
}

func profile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	msg, err := offlineService(cfg).EncodeProfile(optimizer.ProfileRequest{
		ConnectorID: &profileConnector,
		PerStepKW:   profileKW,
		StepSeconds: &profileStepSeconds,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), msg)
}
