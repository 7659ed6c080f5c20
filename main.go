package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"meterdata-etl/baseline"
	"meterdata-etl/config"
	"meterdata-etl/database"
	"meterdata-etl/input"
	"meterdata-etl/logger"
	"meterdata-etl/processor"
	"meterdata-etl/repository"
	"meterdata-etl/utils"
)

var (
	sha1ver   string // sha1 revision used to build the program
	buildTime string // when the executable was built
	version   string // custom version number of the program
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "meterdata-etl",
		Short:        "Batch jobs turning raw meter telemetry into wide-column rows and modelling unit baselines.",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("Version %s - build on %s from sha1 %s\n", version, buildTime, sha1ver))
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.json", "run configuration file")

	rootCmd.AddCommand(
		newIngestCmd(&configFile),
		newBaselineCmd(&configFile),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newIngestCmd(configFile *string) *cobra.Command {
	var inputFile string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Normalize raw measurements into the wide-column store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(*configFile, func(ctx context.Context, configurations config.Configuration, repo repository.Repository, logFileLogger logger.Logger) error {
				store := repository.NewHBaseStore(configurations.WideColumnQuorum())
				defer store.Close()

				source, closeSource, err := measurementSource(ctx, inputFile, configurations, logFileLogger)
				if err != nil {
					return err
				}
				defer closeSource()

				stats, err := processor.IngestMeasurements(ctx, source,
					processor.Stores{Readings: repo, Quarantine: repo, WideColumn: store, Diagnostics: repo},
					processor.IngestConfig{
						TaskId:        configurations.TaskId,
						Workers:       configurations.WORKERS,
						Workload:      config.GetDefaultWorkload(),
						CacheSize:     configurations.READING_CACHE_SIZE,
						RowKey:        configurations.WideColumnStore.RowKey,
						QuarantineDir: configurations.QUARANTINE_DIR,
						Clock:         clockwork.NewRealClock(),
						Metrics:       processor.NewIngestMetrics(prometheus.DefaultRegisterer),
					})
				if err != nil {
					return err
				}
				logFileLogger.Info(fmt.Sprintf("Ingested %d measurements: %d rows written, %d quarantined, %d channels excluded, %d malformed records skipped",
					stats.Processed, stats.Written, stats.Quarantined, stats.ExcludedChannels, stats.Malformed))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "JSON-lines file with the measurements (\"-\" for stdin); the configured source table is used when empty")
	return cmd
}

func newBaselineCmd(configFile *string) *cobra.Command {
	var inputFile, engineCommand string

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Compute and store the monthly baseline of every modelling unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(*configFile, func(ctx context.Context, configurations config.Configuration, repo repository.Repository, logFileLogger logger.Logger) error {
				companyId, err := configurations.CompanyId()
				if err != nil {
					return fmt.Errorf("company must be an integer: %w", err)
				}
				engine, err := baseline.NewCommandEngine(engineCommand)
				if err != nil {
					return err
				}
				reader, closeReader, err := openInput(inputFile)
				if err != nil {
					return err
				}
				defer closeReader()

				stats, err := baseline.RunBaseline(ctx, reader, engine,
					baseline.Stores{Baselines: repo, Diagnostics: repo},
					baseline.JobConfig{
						TaskId:         configurations.TaskId,
						CompanyId:      companyId,
						Devices:        configurations.Devices,
						ModellingUnits: configurations.ModellingUnits,
						Workers:        configurations.WORKERS,
						Clock:          clockwork.NewRealClock(),
						Metrics:        baseline.NewBaselineMetrics(prometheus.DefaultRegisterer),
					})
				if err != nil {
					return err
				}
				logFileLogger.Info(fmt.Sprintf("Baselines written for %d modelling units, %d skipped, %d lines dropped",
					stats.Written, stats.Skipped, stats.Dropped))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&inputFile, "input", "i", "-", "TAB-delimited measurement lines (\"-\" for stdin)")
	cmd.Flags().StringVarP(&engineCommand, "engine", "e", "", "command computing the baseline of one modelling unit")
	_ = cmd.MarkFlagRequired("engine")
	return cmd
}

type job func(ctx context.Context, configurations config.Configuration, repo repository.Repository, logFileLogger logger.Logger) error

//runJob sets up logging, metrics and the document store around one job execution
func runJob(configFile string, run job) error {
	//Store the current time before running the program in order to track execution time
	timer := time.Now()

	configurations, err := config.GetConfig(configFile)
	if err != nil {
		log.Error(err)
		return err
	}

	// Create the log file if it doesn't exist. Append to it if it already exists.
	logFileLogger, err := logger.NewLogger(configurations.LOG_FILE, configurations.MAX_LOGFILE_SIZE)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	defer logFileLogger.Close()

	if configurations.DEBUG_LOGGING {
		log.SetLevel(log.DebugLevel)
	}

	logFileLogger.Info("version = " + version)
	logFileLogger.Info("buildTime = " + buildTime)
	logFileLogger.Info("sha1Version = " + sha1ver)
	logFileLogger.Info("task_id = " + configurations.TaskId)
	logFileLogger.Debug("Workers = " + strconv.Itoa(configurations.WORKERS))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if configurations.METRICS_ADDR != "" {
		serveMetrics(configurations.METRICS_ADDR)
	}

	db, err := database.InitDocumentStore(ctx, configurations)
	if err != nil {
		logFileLogger.Error(err)
		return err
	}
	repo := repository.NewRepository(db, configurations.OutputCollection)
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			logFileLogger.Error(err)
		}
	}()

	err = run(ctx, configurations, repo, logFileLogger)
	if err != nil {
		logFileLogger.Error(err)
	}

	utils.PrintMemUsage(&logFileLogger)

	//Print the time it took to run the program
	logFileLogger.Info(" Execution time: " + time.Since(timer).String())
	return err
}

func measurementSource(ctx context.Context, inputFile string, configurations config.Configuration, logFileLogger logger.Logger) (input.MeasurementSource, func(), error) {
	if inputFile != "" {
		reader, closeReader, err := openInput(inputFile)
		if err != nil {
			return nil, nil, err
		}
		return input.NewJSONLinesSource(reader), closeReader, nil
	}

	if configurations.Source.TABLE == "" {
		return nil, nil, errors.New("either --input or source.TABLE must be specified")
	}
	connectionString, err := configurations.SourceConnectionString()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.InitDB(connectionString)
	if err != nil {
		return nil, nil, err
	}
	source := input.NewSQLSource(db, configurations.Source.TABLE)
	count, err := source.Count(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logFileLogger.Info("Found " + strconv.Itoa(count) + " measurements to ingest")
	return source, func() { db.Close() }, nil
}

func openInput(fileName string) (io.Reader, func(), error) {
	if fileName == "-" {
		return os.Stdin, func() {}, nil
	}
	file, err := os.Open(fileName)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics listener stopped")
		}
	}()
}
