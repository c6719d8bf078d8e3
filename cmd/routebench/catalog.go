package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/routebench/pkg/models"
)

func newModelsCmd(configPath *string) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List routable models with pricing",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			list := a.catalog.ModelsOrDefault(context.Background())
			w := newTable(os.Stdout)
			fmt.Fprintln(w, "ID\tPROVIDER\tCONTEXT\tINPUT/1K\tOUTPUT/1K")
			for _, m := range list {
				if filter != "" && !strings.Contains(strings.ToLower(m.ID+" "+m.Name), strings.ToLower(filter)) {
					continue
				}
				ctxLen := "-"
				if m.ContextLength != nil {
					ctxLen = fmt.Sprintf("%d", *m.ContextLength)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					truncate(m.ID, modelColumnWidth), m.Provider, ctxLen, price(m.Pricing, true), price(m.Pricing, false))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "only models whose id or name contains this text")
	return cmd
}

func price(p *models.ModelPricing, input bool) string {
	if p == nil {
		return "-"
	}
	v := p.Output
	if input {
		v = p.Input
	}
	if v == nil {
		return "-"
	}
	return formatCost(*v)
}

func newProvidersCmd(configPath *string) *cobra.Command {
	var modelID string

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List upstream providers, globally or for one model",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			var list []string
			if modelID == "" {
				list = a.catalog.ProvidersOrDefault(ctx)
			} else {
				target, err := a.router.Resolve(modelID, "")
				if err != nil {
					return err
				}
				list = a.catalog.ProvidersForModel(ctx, target.Model)
			}
			for _, p := range list {
				fmt.Println(p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelID, "model", "m", "", "list providers serving this model or alias")
	return cmd
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configured API key against the routing API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := a.requireKey(); err != nil {
				return err
			}

			if !a.catalog.ValidateCredential(context.Background()) {
				return fmt.Errorf("API key rejected or API unreachable")
			}
			fmt.Println("API key is valid.")
			return nil
		},
	}
}
