/*
 * Copyright 2022 Google LLC.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


/*
Pmml describes, scores and serves PMML documents.

Usage example:

	# Metadata of a document.
	pmml describe -m model.pmml

	# Score a csv or json file.
	pmml predict -m model.pmml -i records.csv -o predictions.csv

	# Serve the predictions over HTTP.
	pmml serve -m model.pmml --config pmml.yaml

	# Measure the scoring speed.
	pmml benchmark -m model.pmml -d csv:records.csv --batch-size=100 --num-runs=20
*/
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/google/yggdrasil-pmml/utils/logging"
)

var logLevel string
var logFormat string

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "pmml",
		Short:             "Describes, scores and serves PMML documents",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
	}
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Logging level: info error or debug")
	root.PersistentFlags().StringVarP(&logFormat, "log-format", "", "pretty", "Logging format: pretty or json")

	root.AddCommand(DescribeCommand())
	root.AddCommand(PredictCommand())
	root.AddCommand(ServeCommand())
	root.AddCommand(BenchmarkCommand())
	return root
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {

	switch logLevel {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		return fmt.Errorf("invalid logging level %q", logLevel)
	}

	switch logFormat {
	case "pretty":
		setupPrettyLogging()
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		return fmt.Errorf("invalid log format %q", logFormat)
	}
	logging.Set(log.Logger)
	return nil
}

func setupPrettyLogging() {
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	writer.FormatFieldValue = func(i interface{}) string {
		switch v := i.(type) {
		case json.Number:
			val, _ := v.Float64()
			return fmt.Sprintf("%.3f", val)
		default:
			return fmt.Sprintf("%s", i)
		}

	}
	log.Logger = log.Output(writer)
}
