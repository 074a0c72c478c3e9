/*
Copyright 2024 SellerDesk Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sellerdesk/sellerdesk"
	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/database"
	"github.com/sellerdesk/sellerdesk/internal/notification"
)

// SellerDesk represents the CLI application, encapsulating the root Cobra command.
type SellerDesk struct {
	cmd *cobra.Command
}

// sellerdeskInstance holds the engine instance and its configuration, shared
// across subcommands.
type sellerdeskInstance struct {
	sellerdesk *sellerdesk.Sellerdesk
	cnf        *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the engine before any
// subcommand runs.
func preRun(app *sellerdeskInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("sellerdesk.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newEngine, err := setupSellerDesk(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.sellerdesk = newEngine
		app.cnf = cnf

		return nil
	}
}

// setupSellerDesk connects the datasource and builds the engine from it.
func setupSellerDesk(cfg *config.Configuration) (*sellerdesk.Sellerdesk, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newEngine, err := sellerdesk.NewSellerdesk(db)
	if err != nil {
		return nil, fmt.Errorf("error creating sellerdesk: %v", err)
	}
	return newEngine, nil
}

// NewCLI creates the command-line interface for the SellerDesk application.
func NewCLI() *SellerDesk {
	var configFile string
	b := &sellerdeskInstance{}

	var rootCmd = &cobra.Command{
		Use:   "sellerdesk",
		Short: "Unified marketplace seller inbox",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./sellerdesk.json", "Configuration file for sellerdesk")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(configCommands())

	return &SellerDesk{cmd: rootCmd}
}

func (w SellerDesk) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
