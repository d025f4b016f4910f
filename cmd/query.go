package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	app "github.com/okian/crimemap/internal/app"
	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/pkg/logger"
)

type queryFlags struct {
	fidelity     string
	constabulary string
	crimeType    string
	month        string
	clear        bool
}

func newQueryCmd(c *cli) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one explore pipeline and print the view as JSON",
		Example: `  crimemap query --fidelity high --constabulary "Avon and Somerset" --crime-type Burglary --month 2023-01
  crimemap query --fidelity low --crime-type Robbery`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			view, err := c.query(ctx, f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
	cmd.Flags().StringVar(&f.fidelity, "fidelity", string(model.FidelityHigh), "Fidelity tier (high, low)")
	cmd.Flags().StringVar(&f.constabulary, "constabulary", "", "Constabulary name (high fidelity)")
	cmd.Flags().StringVar(&f.crimeType, "crime-type", "", "Crime type")
	cmd.Flags().StringVar(&f.month, "month", "", "Month as YYYY-MM (high fidelity)")
	cmd.Flags().BoolVar(&f.clear, "clear", false, "Clear cached datasets before running")
	_ = cmd.MarkFlagRequired("crime-type")
	return cmd
}

func (c *cli) query(ctx context.Context, f queryFlags) (app.View, error) {
	fidelity, err := model.ParseFidelity(f.fidelity)
	if err != nil {
		return app.View{}, err
	}
	svc, closeSource, err := newService(ctx, c.cfg, c.log)
	if err != nil {
		return app.View{}, err
	}
	defer func() {
		if err := closeSource(); err != nil {
			c.log.Error(ctx, "closing dataset source", logger.Error(err))
		}
	}()

	req := app.Request{Selection: model.Selection{
		Fidelity:     fidelity,
		Constabulary: f.constabulary,
		CrimeType:    f.crimeType,
		Month:        f.month,
	}}
	if f.clear {
		req.ClearGesture = uuid.NewString()
	}
	view, err := svc.Explore(ctx, req)
	if err != nil {
		return view, fmt.Errorf("explore: %w", err)
	}
	return view, nil
}
