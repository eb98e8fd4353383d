package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shapelab/internal/store"
)

var showSaved bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect stored model snapshots",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	RunE:  runModelsList,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsShow,
}

func init() {
	modelsCmd.PersistentFlags().BoolVar(&showSaved, "saved", false, "Use the saved-models collection")
}

func selectedStore(a *app) store.Store {
	if showSaved {
		return a.saved
	}
	return a.models
}

func runModelsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := selectedStore(a).List(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runModelsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := selectedStore(a).Read(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(data, '\n'))
	return err
}
