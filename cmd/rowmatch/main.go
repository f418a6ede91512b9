// Command rowmatch compares a data table with a lookup table on paired
// columns and writes a colored workbook report. Inputs missing from the
// flags are asked for interactively.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v2"

	"rowmatch/internal/config"
	"rowmatch/internal/exporter"
	"rowmatch/internal/infrastructure"
	"rowmatch/internal/matching"
	"rowmatch/internal/services"
	"rowmatch/internal/tabular"
	"rowmatch/pkg/contracts"
	"rowmatch/pkg/contracts/domain"
)

const (
	inputPreviewRows  = 5
	resultPreviewRows = 10
)

type options struct {
	dataPath    string
	lookupPath  string
	dataCols    string
	lookupCols  string
	out         string
	sheet       string
	lookupSheet string
	configPath  string
	csv         bool
	noProgress  bool
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("rowmatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dataPath, "data", "", "data table file (.csv or .xlsx)")
	fs.StringVar(&opts.lookupPath, "lookup", "", "lookup table file (.csv or .xlsx)")
	fs.StringVar(&opts.dataCols, "data-cols", "", "data table columns, comma separated names or 0-based positions")
	fs.StringVar(&opts.lookupCols, "lookup-cols", "", "lookup table columns, comma separated names or 0-based positions")
	fs.StringVar(&opts.out, "out", "", "report file (defaults to a timestamped name in the output directory)")
	fs.StringVar(&opts.sheet, "sheet", "", "worksheet of the data workbook (defaults to the first sheet)")
	fs.StringVar(&opts.lookupSheet, "lookup-sheet", "", "worksheet of the lookup workbook (defaults to -sheet)")
	fs.StringVar(&opts.configPath, "config", "", "configuration file")
	fs.BoolVar(&opts.csv, "csv", false, "also export both annotated tables as CSV")
	fs.BoolVar(&opts.noProgress, "no-progress", false, "disable the progress bar")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.lookupSheet == "" {
		opts.lookupSheet = opts.sheet
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "\n错误: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.csv {
		cfg.Report.WriteCSV = true
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()
	logger = infrastructure.WithComponent(logger, "cli")
	ctx = infrastructure.EnsureTraceID(ctx)

	p := newPrompter(stdin, stdout)
	fmt.Fprintln(stdout, "精确数据比对工具")
	fmt.Fprintln(stdout, strings.Repeat("=", 50))

	if opts.dataPath == "" || opts.lookupPath == "" {
		fmt.Fprintln(stdout, "\n请输入文件路径：")
	}
	if err := p.fill(&opts.dataPath, "数据表文件路径: "); err != nil {
		return err
	}
	if err := p.fill(&opts.lookupPath, "查找表文件路径: "); err != nil {
		return err
	}

	svc := services.NewCompareService(cfg.Matching, logger)

	fmt.Fprintln(stdout, "\n正在读取文件...")
	data, lookup, err := svc.LoadFiles(ctx,
		services.FileSource{Path: opts.dataPath, Sheet: opts.sheet},
		services.FileSource{Path: opts.lookupPath, Sheet: opts.lookupSheet},
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\n数据表预览 (共%d行):\n", data.Len())
	if err := exporter.WriteTablePreview(stdout, data, data.Columns, inputPreviewRows); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n查找表预览 (共%d行):\n", lookup.Len())
	if err := exporter.WriteTablePreview(stdout, lookup, lookup.Columns, inputPreviewRows); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n数据表列名: %s\n", strings.Join(data.Columns, ", "))
	fmt.Fprintf(stdout, "查找表列名: %s\n", strings.Join(lookup.Columns, ", "))

	if opts.dataCols == "" || opts.lookupCols == "" {
		fmt.Fprintln(stdout, "\n请选择要比较的列（用逗号分隔，例如: 0,1,2 或 姓名,身份证号）:")
	}
	if err := p.fill(&opts.dataCols, "数据表的列: "); err != nil {
		return err
	}
	if err := p.fill(&opts.lookupCols, "查找表的列: "); err != nil {
		return err
	}

	dataCols, lookupCols := tabular.SplitColumns(opts.dataCols), tabular.SplitColumns(opts.lookupCols)
	pairing, err := resolvePairing(data, lookup, dataCols, lookupCols)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "\n将比较以下列:")
	for _, pair := range pairing {
		fmt.Fprintf(stdout, "  数据表[%s] <-> 查找表[%s]\n", pair.DataColumn, pair.LookupColumn)
	}

	fmt.Fprintln(stdout, "\n开始精确比对...")
	input := services.CompareInput{
		Data:          data,
		Lookup:        lookup,
		DataColumns:   dataCols,
		LookupColumns: lookupCols,
	}
	var bar *progressbar.ProgressBar
	if !opts.noProgress {
		bar = progressbar.NewOptions(lookup.Len(),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("比对中"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		input.Progress = func(pr matching.Progress) { bar.Set(pr.Processed) }
	}

	res, err := svc.Compare(ctx, input)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "\n比对完成！")

	if err := exporter.WriteStatistics(stdout, res.Statistics); err != nil {
		return err
	}

	name := opts.out
	if name == "" {
		name = exporter.DefaultReportName(time.Now())
	}
	paths, err := services.NewReportStore(cfg, logger).Save(ctx, name, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n结果已保存到: %s\n", paths[0])
	for _, path := range paths[1:] {
		fmt.Fprintf(stdout, "CSV 已导出: %s\n", path)
	}

	fmt.Fprintln(stdout, "\n查找表结果预览:")
	if err := exporter.WritePreview(stdout, res, resultPreviewRows); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Comparison finished",
		slog.String("report", paths[0]),
		slog.Int("matched", res.Statistics.Matched),
		slog.Int("duplicate", res.Statistics.Duplicate),
		slog.Int("unmatched", res.Statistics.Unmatched))
	fmt.Fprintln(stdout, "\n程序执行完毕！")
	return nil
}

// resolvePairing validates the selections up front so the pairing can be
// shown before the scan starts
func resolvePairing(data, lookup *domain.Table, dataCols, lookupCols []string) (domain.ColumnPairing, error) {
	if _, err := matching.NewPairing(dataCols, lookupCols); err != nil {
		return nil, err
	}
	dataNames, err := tabular.ResolveColumns(data, matching.SideData, dataCols)
	if err != nil {
		return nil, err
	}
	lookupNames, err := tabular.ResolveColumns(lookup, matching.SideLookup, lookupCols)
	if err != nil {
		return nil, err
	}
	return matching.NewPairing(dataNames, lookupNames)
}
