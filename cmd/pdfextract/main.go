// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	pdfextract "github.com/rayfred90/file-to-md-json"
	"github.com/rayfred90/file-to-md-json/logger"
	"github.com/rayfred90/file-to-md-json/ocr/tesseract"
	"github.com/rayfred90/file-to-md-json/raster"
	"github.com/rayfred90/file-to-md-json/tracer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

type options struct {
	configPath string
	outPath    string
	timeout    time.Duration
	trace      bool
	verbose    bool
	noImages   bool
	quiet      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "pdfextract",
		Short:         "Extract text, tables and images from PDF documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(os.Stderr)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if opts.verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVar(&opts.trace, "trace", false, "print the trace buffer when done")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newExtractCmd(opts), newMetadataCmd(opts))
	return root
}

func newExtractCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Run a full extraction and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "write JSON to this file instead of stdout")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "abort the run after this long (0 disables)")
	cmd.Flags().BoolVar(&opts.noImages, "no-images", false, "skip embedded image extraction")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not log progress")
	return cmd
}

func newMetadataCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <file.pdf>",
		Short: "Print document metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := pdfextract.WriteReport(args[0], cmd.OutOrStdout())
			flushTrace(opts, err)
			return err
		},
	}
}

func runExtract(ctx context.Context, opts *options, path string, stdout io.Writer) error {
	cfg, err := pdfextract.LoadConfig(opts.configPath)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return err
	}
	cfg.Logger = logrusFunc(log)
	engine := tesseract.New(cfg.OCRLanguages...)
	engine.DPI = int(cfg.OCRRenderDPI)
	cfg.OCREngine = engine
	cfg.Rasterizer = raster.New(cfg.OCRRenderDPI)
	cfg.Splitter = pdfextract.NewPageRangeExtractor(cfg.TempDir)
	if opts.noImages {
		cfg.MaxImages = 0
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	proc := pdfextract.NewProcessor(cfg)
	res, err := proc.Extract(ctx, path, func(percent int, message string) {
		if !opts.quiet {
			log.WithFields(logrus.Fields{"percent": percent}).Info(message)
		}
	})
	if err != nil {
		flushTrace(opts, err)
		return err
	}
	if res.Error != "" {
		log.WithFields(logrus.Fields{"path": path}).Error(res.Error)
	}

	w := stdout
	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	flushTrace(opts, nil)
	return nil
}

func flushTrace(opts *options, err error) {
	if err != nil {
		log.WithError(err).Error("extraction failed")
	}
	if err != nil || opts.trace {
		tracer.Flush(os.Stderr)
	}
}

// logrusFunc adapts the library's key/value logger onto logrus fields.
func logrusFunc(l *logrus.Logger) logger.LogFunc {
	return func(level logger.LogLevel, msg string, keyvals ...interface{}) {
		fields := logrus.Fields{}
		for i := 0; i+1 < len(keyvals); i += 2 {
			fields[fmt.Sprint(keyvals[i])] = keyvals[i+1]
		}
		if len(keyvals)%2 == 1 {
			fields["extra"] = keyvals[len(keyvals)-1]
		}
		entry := l.WithFields(fields)
		switch level {
		case logger.ErrorLevel:
			entry.Error(msg)
		case logger.InfoLevel:
			entry.Info(msg)
		default:
			entry.Debug(msg)
		}
	}
}
