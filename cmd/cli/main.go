package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/therealutkarshpriyadarshi/shapelet/pkg/discrepancy"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/signature"
)

const (
	version = "1.0.0"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "l2":
		handleL2(os.Args[2:])
	case "logsig":
		handleLogsig(os.Args[2:])
	case "channels":
		handleChannels(os.Args[2:])
	case "version":
		fmt.Printf("shapelet-cli version %s\n", version)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showUsage()
		os.Exit(1)
	}
}

// pairFile is the on-disk input format: a time grid plus two paths given
// as explicit shape and row-major values.
type pairFile struct {
	Times []float64 `json:"times"`
	Path1 struct {
		Shape  []int     `json:"shape"`
		Values []float64 `json:"values"`
	} `json:"path1"`
	Path2 struct {
		Shape  []int     `json:"shape"`
		Values []float64 `json:"values"`
	} `json:"path2"`
}

func loadPair(file string) (path.Grid, *path.Tensor, *path.Tensor) {
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Printf("Error reading input: %v\n", err)
		os.Exit(1)
	}
	var pf pairFile
	if err := json.Unmarshal(data, &pf); err != nil {
		fmt.Printf("Error parsing input: %v\n", err)
		os.Exit(1)
	}
	p1, err := path.New(pf.Path1.Shape, pf.Path1.Values)
	if err != nil {
		fmt.Printf("Error in path1: %v\n", err)
		os.Exit(1)
	}
	p2, err := path.New(pf.Path2.Shape, pf.Path2.Values)
	if err != nil {
		fmt.Printf("Error in path2: %v\n", err)
		os.Exit(1)
	}
	return path.Grid(pf.Times), p1, p2
}

func channelsOf(t *path.Tensor) int {
	return t.Dim(-1)
}

func printResult(out *path.Tensor) {
	result := map[string]interface{}{
		"shape":  out.Shape(),
		"values": out.Data(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}

func handleL2(args []string) {
	fs := flag.NewFlagSet("l2", flag.ExitOnError)
	var (
		input        = fs.String("input", "", "path pair JSON file (required)")
		pseudometric = fs.Bool("pseudometric", false, "apply a learned pseudometric")
		metricType   = fs.String("metric", "general", "pseudometric type (diagonal|general)")
		workers      = fs.Int("workers", 0, "kernel workers (0 = one per CPU)")
		seed         = fs.Int64("seed", 42, "parameter initialization seed")
	)
	fs.Parse(args)

	if *input == "" {
		fmt.Println("Error: -input is required")
		fs.Usage()
		os.Exit(1)
	}

	times, p1, p2 := loadPair(*input)

	cfg := discrepancy.L2Config{
		Channels:     channelsOf(p1),
		Pseudometric: *pseudometric,
		MetricType:   discrepancy.MetricType(*metricType),
		Workers:      *workers,
		Seed:         *seed,
	}
	disc, err := discrepancy.NewL2(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	out, err := disc.Compute(times, p1, p2)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printResult(out)
}

func handleLogsig(args []string) {
	fs := flag.NewFlagSet("logsig", flag.ExitOnError)
	var (
		input        = fs.String("input", "", "path pair JSON file (required)")
		depth        = fs.Int("depth", 2, "logsignature truncation depth")
		p            = fs.Float64("p", 2, "norm parameter")
		pInf         = fs.Bool("p-inf", false, "use the max norm")
		includeTime  = fs.Bool("time", true, "prepend the time grid as a channel")
		pseudometric = fs.Bool("pseudometric", false, "apply a learned pseudometric")
		metricType   = fs.String("metric", "general", "pseudometric type (diagonal|general)")
		seed         = fs.Int64("seed", 42, "parameter initialization seed")
	)
	fs.Parse(args)

	if *input == "" {
		fmt.Println("Error: -input is required")
		fs.Usage()
		os.Exit(1)
	}

	times, p1, p2 := loadPair(*input)

	norm := *p
	if *pInf {
		norm = math.Inf(1)
	}
	cfg := discrepancy.LogsignatureConfig{
		Channels:     channelsOf(p1),
		Depth:        *depth,
		P:            norm,
		IncludeTime:  *includeTime,
		Pseudometric: *pseudometric,
		MetricType:   discrepancy.MetricType(*metricType),
		Seed:         *seed,
	}
	disc, err := discrepancy.NewLogsignature(cfg, signature.Reference{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	out, err := disc.Compute(times, p1, p2)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printResult(out)
}

func handleChannels(args []string) {
	fs := flag.NewFlagSet("channels", flag.ExitOnError)
	var (
		channels = fs.Int("channels", 0, "path channel count (required)")
		depth    = fs.Int("depth", 2, "logsignature truncation depth")
	)
	fs.Parse(args)

	if *channels < 1 {
		fmt.Println("Error: -channels is required")
		fs.Usage()
		os.Exit(1)
	}
	fmt.Println(signature.Channels(*channels, *depth))
}

func showUsage() {
	fmt.Println("Shapelet CLI - compute path discrepancies locally")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  shapelet-cli <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  l2        Direct L2 discrepancy between a path pair")
	fmt.Println("  logsig    Logsignature discrepancy between a path pair")
	fmt.Println("  channels  Logsignature channel count for given channels/depth")
	fmt.Println("  version   Show version")
	fmt.Println("  help      Show this help")
	fmt.Println()
	fmt.Println("Input format (JSON):")
	fmt.Println(`  {"times": [0, 1, 2],`)
	fmt.Println(`   "path1": {"shape": [3, 2], "values": [...]},`)
	fmt.Println(`   "path2": {"shape": [3, 2], "values": [...]}}`)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  shapelet-cli l2 -input pair.json")
	fmt.Println("  shapelet-cli logsig -input pair.json -depth 2 -p 2")
	fmt.Println("  shapelet-cli channels -channels 3 -depth 2")
	fmt.Println()
}
