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

// Benchmark the scoring speed of a document.
//
// Usage example:
//
//	pmml benchmark \
//		--model=model.pmml \
//		--dataset=csv:records.csv \
//		--batch-size=100 \
//		--warmup-runs=10 \
//		--num-runs=100
//
// Naming convention:
//   - A (benchmark) "run" evaluates the speed of a document on a dataset.
//   - A "run" is composed of one of more "unit runs".
//   - A "unit run" measure the speed of an engine with specific parameters
//     (e.g. batchSize=10).

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/google/yggdrasil-pmml/serving/engine"
	"github.com/google/yggdrasil-pmml/serving/example"
	"github.com/google/yggdrasil-pmml/utils/file"
)

// Options are the options to run the benchmark.
type Options struct {
	// Number of times the entire dataset is run.
	numRuns int

	// Number of runs to "warmup" the engine i.e. running the engine before the benchmark.
	warmupRuns int

	// Number of examples in each batch.
	batchSize int

	// Number of records scored in parallel in a batch.
	workers int
}

// BenchmarkCommand measures the scoring speed of a document.
func BenchmarkCommand() *cobra.Command {
	var modelFile string
	var datasetPath string
	var options Options

	var cmd = &cobra.Command{
		Use:   "benchmark -m modelFile -d csv:datasetFile",
		Short: "Measures the scoring speed of a document on a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), modelFile, datasetPath, &options, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "path of the PMML document")
	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "typed path to the dataset e.g. csv:/tmp/my_file.csv")
	cmd.Flags().IntVarP(&options.numRuns, "num-runs", "", 20, "number of times the dataset is run. Higher values increase the precision of the timings, but increase the duration of the benchmark.")
	cmd.Flags().IntVarP(&options.batchSize, "batch-size", "b", 100, "number of examples per batch")
	cmd.Flags().IntVarP(&options.warmupRuns, "warmup-runs", "", 2, "number of runs through the dataset before the benchmark")
	cmd.Flags().IntVarP(&options.workers, "workers", "w", 0, "number of records scored in parallel (0 for one per CPU)")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

// Run runs the benchmark. The results are printed on "w".
func Run(ctx context.Context, modelPath string, datasetPath string, options *Options, w io.Writer) error {
	fmt.Fprintf(w, "Run benchmark with\n  model: %v\n  dataset: %v\n  options: %+v\n",
		modelPath, datasetPath, *options)

	// Check the validity of the options
	if options.numRuns <= 0 {
		return fmt.Errorf("options.runs should be greater or equal to 1")
	}
	if options.batchSize <= 0 {
		return fmt.Errorf("options.batchSize should be greater or equal to 1")
	}
	if options.warmupRuns <= 0 {
		return fmt.Errorf("options.warmupRuns should be greater or equal to 1")
	}

	// Load the document
	fmt.Fprintln(w, "Load model")
	engineOptions := engine.DefaultOptions()
	engineOptions.Workers = options.workers
	engine, err := loadEngine(ctx, modelPath, engineOptions)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\tBuilt engine \"%T\" for a %v with %d input features\n",
		engine, engine.Document().Model.Name(), engine.Features().NumFeatures())

	// Loads the dataset.
	fmt.Fprintln(w, "Load dataset")
	dataset, err := loadDataset(engine, datasetPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\t%d examples\n", dataset.NumAllocatedExamples())
	if dataset.NumAllocatedExamples() == 0 {
		return fmt.Errorf("the dataset %v is empty", datasetPath)
	}

	// Run the benchmark
	fmt.Fprintln(w, "Run benchmark")
	// For now, the benchmark is composed of a single evaluation.
	result, err := UnitRun(ctx, engine, dataset, options)
	if err != nil {
		return err
	}

	// Print the result
	fmt.Fprintln(w, "Results")
	fmt.Fprint(w, result)

	return nil
}

// UnitRunResult contains the benchmark result for a single run.
type UnitRunResult struct {
	durationPerExample time.Duration
	numExamples        int
	batchSize          int
	numFailed          int
}

func (result *UnitRunResult) String() string {
	return fmt.Sprintf(
		`Avg. time per dataset:  %v
Avg. time per batch:    %v
Avg. time per examples: %v
Failed examples:        %d
`,
		// Note: In Go, duration * duration gives a duration, where the result is effectively
		// numNanoseconds * numNanoseconds -> numNanoseconds.
		result.durationPerExample*time.Duration(result.numExamples),
		result.durationPerExample*time.Duration(result.batchSize),
		result.durationPerExample,
		result.numFailed)
}

func loadDataset(engine engine.Engine, typedPath string) (*example.Batch, error) {
	format, path, err := parseTypedPath(typedPath)
	if err != nil {
		return nil, err
	}
	switch format {
	case "csv":
		return loadDatasetCsv(engine, path)
	default:
		return nil, fmt.Errorf("Non supported dataset format %v", format)
	}
}

// parseTypedPath parses a typed path into its constituents.
//
// For example:
//
//	Input: "csv:/path/to/csv/file"
//	Results:
//	  1. "csv"
//	  2. "/path/to/csv/file"
//	  3. nil (i.e. no error)
func parseTypedPath(typedPath string) (pathType string, path string, err error) {
	i := strings.Index(typedPath, ":")
	if i == -1 {
		err = fmt.Errorf("Malformed typed dataset path. Expecting [format]:[path]. Instead, got %v", typedPath)
		return
	}
	pathType = typedPath[:i]
	path = typedPath[i+1:]
	err = nil
	return
}

func loadDatasetCsv(engine engine.Engine, path string) (*example.Batch, error) {
	// Read the csv content.
	fileHandle, err := file.OpenRead(context.Background(), path)
	if err != nil {
		return nil, err
	}
	fileIO := fileHandle.IO(context.Background())
	defer fileIO.Close()
	csvData, err := csv.NewReader(fileIO).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(csvData) == 0 {
		return nil, fmt.Errorf("the csv file %v has no header", path)
	}

	// Skip the header file
	csvHeader := csvData[0]
	csvData = csvData[1:]
	numExamples := len(csvData)

	// Convert the csv into a "Batch".
	examples := example.NewBatch(numExamples, engine.Features())
	for exampleIdx := 0; exampleIdx < numExamples; exampleIdx++ {
		if err := examples.SetFromFields(exampleIdx, csvHeader, csvData[exampleIdx]); err != nil {
			return nil, err
		}
	}
	return examples, nil
}

// UnitRun benchmark a single engine on a give dataset.
func UnitRun(ctx context.Context, engine engine.Engine, dataset *example.Batch, options *Options) (*UnitRunResult, error) {

	batchSize := options.batchSize
	numExamples := dataset.NumAllocatedExamples()
	numBatches := (numExamples + batchSize - 1) / options.batchSize

	batch := example.NewBatch(batchSize, engine.Features())
	numFailed := 0

	run := func(numRuns int) error {
		numFailed = 0
		for runIdx := 0; runIdx < numRuns; runIdx++ {
			for batchIdx := 0; batchIdx < numBatches; batchIdx++ {
				beginIdx := batchIdx * batchSize
				endIdx := (batchIdx + 1) * batchSize
				if endIdx > numExamples {
					endIdx = numExamples
				}
				numExamplesInBatch := endIdx - beginIdx

				// Set the example values.
				// The benchmark time account for a single copy of the records.
				batch.CopyFrom(dataset, beginIdx, endIdx)

				// Generate the predictions.
				for _, slot := range engine.PredictBatch(ctx, batch.Records[:numExamplesInBatch]) {
					if slot.Err != nil {
						numFailed++
					}
				}
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return nil
	}

	// Warmup
	if err := run(options.warmupRuns); err != nil {
		return nil, err
	}

	// Benchmark
	start := time.Now()
	if err := run(options.numRuns); err != nil {
		return nil, err
	}
	end := time.Now()

	result := &UnitRunResult{
		numExamples: numExamples,
		batchSize:   batchSize,
		numFailed:   numFailed / options.numRuns,
	}
	result.durationPerExample = end.Sub(start) / time.Duration(options.numRuns*numExamples)
	return result, nil
}
