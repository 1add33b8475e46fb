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


package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/google/yggdrasil-pmml/model/io/canonical"
	"github.com/google/yggdrasil-pmml/serving"
	"github.com/google/yggdrasil-pmml/serving/engine"
	"github.com/google/yggdrasil-pmml/serving/format"
	"github.com/google/yggdrasil-pmml/serving/server"
	"github.com/google/yggdrasil-pmml/utils/file"
)

// loadEngine loads a document and creates its engine.
func loadEngine(ctx context.Context, modelPath string, options engine.Options) (engine.Engine, error) {
	doc, err := canonical.Load(ctx, modelPath)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", modelPath).Str("model", doc.Model.Name()).Msg("Document loaded")
	return serving.NewEngineWithOptions(doc, options)
}

// DescribeCommand prints the metadata of a document.
func DescribeCommand() *cobra.Command {
	var modelFile string

	var cmd = &cobra.Command{
		Use:   "describe -m modelFile",
		Short: "Prints the input, target and output fields of a document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Describe(cmd.Context(), modelFile, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "path of the PMML document")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

// Describe writes the metadata of a document.
func Describe(ctx context.Context, modelFile string, w io.Writer) error {
	e, err := loadEngine(ctx, modelFile, engine.DefaultOptions())
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(format.Describe(e))
}

// PredictCommand scores a file.
func PredictCommand() *cobra.Command {
	var modelFile string
	var inputFile string
	var outputFile string
	options := engine.DefaultOptions()

	var cmd = &cobra.Command{
		Use:   "predict -m modelFile [-i inputFile] [-o outputFile]",
		Short: "Scores the records of a csv or json file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if len(outputFile) > 0 {
				f, err := os.Create(outputFile)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return Predict(cmd.Context(), modelFile, inputFile, cmd.InOrStdin(), w, options)
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "path of the PMML document")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "csv or json input file (optional, reads json from stdin if not present)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (optional)")
	cmd.Flags().BoolVarP(&options.SupplementOutput, "supplement", "", true, "emit the outputs explaining the predictions")
	cmd.Flags().IntVarP(&options.Workers, "workers", "w", 0, "number of records scored in parallel (0 for one per CPU)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

// Predict scores "inputFile", or the json document in "stdin" if
// "inputFile" is empty. CSV inputs give CSV outputs with an extra "error"
// column, JSON inputs give JSON outputs of the same shape.
func Predict(ctx context.Context, modelFile, inputFile string, stdin io.Reader, w io.Writer, options engine.Options) error {
	e, err := loadEngine(ctx, modelFile, options)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(inputFile), ".csv") {
		return predictCsv(ctx, e, inputFile, w)
	}

	var input []byte
	if len(inputFile) > 0 {
		input, err = file.ReadFile(ctx, inputFile)
	} else {
		input, err = io.ReadAll(stdin)
	}
	if err != nil {
		return err
	}
	answer, err := format.PredictJSON(ctx, e, string(input))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, answer)
	return err
}

func predictCsv(ctx context.Context, e engine.Engine, path string, w io.Writer) error {
	dataset, err := loadDatasetCsv(e, path)
	if err != nil {
		return err
	}
	slots := e.PredictBatch(ctx, dataset.Records)

	writer := csv.NewWriter(w)
	if err := writer.Write(append(e.OutputNames(), "error")); err != nil {
		return err
	}
	numFailed := 0
	for _, slot := range slots {
		row := make([]string, 0, len(e.OutputNames())+1)
		if slot.Err != nil {
			numFailed++
			for range e.OutputNames() {
				row = append(row, "")
			}
			row = append(row, slot.Err.Error())
		} else {
			for _, value := range slot.Record.Values {
				row = append(row, cell(value))
			}
			row = append(row, "")
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	log.Info().Int("records", len(slots)).Int("failed", numFailed).Msg("Scored")
	return writer.Error()
}

func cell(value interface{}) string {
	if value == nil {
		return ""
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return s
}

// ServeCommand serves the predictions of a document over HTTP.
func ServeCommand() *cobra.Command {
	var modelFile string
	var configFile string

	var cmd = &cobra.Command{
		Use:   "serve [-m modelFile] [--config configFile]",
		Short: "Serves the predictions of a document over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(configFile)
			if err != nil {
				return err
			}
			if len(modelFile) > 0 {
				cfg.Model.Path = modelFile
			}
			if len(cfg.Model.Path) == 0 {
				return fmt.Errorf("no model: set --model, model.path or PMML_MODEL_PATH")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			e, err := loadEngine(ctx, cfg.Model.Path, cfg.Model.EngineOptions())
			if err != nil {
				log.Error().Err(err).Str("path", cfg.Model.Path).Msg("Cannot load the document")
				return err
			}
			return server.New(e, cfg.Server).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "path of the PMML document (overrides model.path)")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML configuration file (optional)")
	return cmd
}
