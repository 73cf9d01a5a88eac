// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gorse-io/deepctr/cmd/version"
	"github.com/gorse-io/deepctr/common/log"
	"github.com/gorse-io/deepctr/common/monitor"
	"github.com/gorse-io/deepctr/config"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "deepctr",
	Short: "Train click-through rate models.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetLogger(cmd.Flags())
		if progress, _ := cmd.Flags().GetBool("progress"); progress {
			monitor.SetProgressWriter(os.Stderr)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Print(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("progress", false, "show progress bars")
	rootCommand.Flags().BoolP("version", "v", false, "deepctr version")
}

// loadConfig loads the configuration of a model from the file given by
// --config and changed flags.
func loadConfig(cmd *cobra.Command, modelName string) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		log.Logger().Info("load config", zap.String("config", configPath))
	}
	return config.LoadConfig(modelName, configPath, cmd.Flags())
}

// setupTracing installs the global tracer provider. The returned function
// flushes spans.
func setupTracing(ctx context.Context, conf *config.Config) (func(), error) {
	tp, shutdown, err := conf.Tracing.NewTracerProvider(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(log.GetErrorHandler())
	return func() {
		if err := shutdown(context.Background()); err != nil {
			log.Logger().Error("failed to shutdown tracer provider", zap.Error(err))
		}
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
