package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"modl/pkg/client"
	"modl/pkg/common"
	"modl/pkg/storage"
)

const Prompt = "modl> "

var (
	serverAddr string
	name       string

	rootCmd = &cobra.Command{
		Use:          "modl-cli",
		Short:        "Client for the MODL partition search server",
		SilenceUsage: true,
	}

	groupCmd = &cobra.Command{
		Use:   "group <count>...",
		Short: "Group a categorical variable from its value counts (descending)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withClient(runGroup),
	}

	discretizeCmd = &cobra.Command{
		Use:   "discretize <freq:lower:upper>...",
		Short: "Partition value-ordered intervals into the best histogram",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withClient(runDiscretize),
	}

	histogramCmd = &cobra.Command{
		Use:   "histogram <value>...",
		Short: "Build the best floating-point histogram of raw values",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withClient(runHistogram),
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show server search statistics",
		Args:  cobra.NoArgs,
		RunE:  withClient(runStats),
	}

	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt",
		Args:  cobra.NoArgs,
		RunE:  runShell,
	}

	costsCmd = &cobra.Command{
		Use:   "costs",
		Short: "Attribute construction costs",
	}

	costsValidateCmd = &cobra.Command{
		Use:   "validate <file.json>",
		Short: "Check that a JSON list of attribute costs is a valid prior",
		Args:  cobra.ExactArgs(1),
		RunE:  runCostsValidate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:9090", "MODL TCP Server Address")
	rootCmd.PersistentFlags().StringVar(&name, "name", "", "Attribute name sent with the request")
	costsCmd.AddCommand(costsValidateCmd)
	rootCmd.AddCommand(groupCmd, discretizeCmd, histogramCmd, statsCmd, shellCmd, costsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func withClient(run func(cli *client.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cli, err := client.Dial(serverAddr)
		if err != nil {
			return fmt.Errorf("connection failed: %w (is the server running? go run ./cmd/server)", err)
		}
		defer cli.Close()
		return run(cli, args)
	}
}

func runGroup(cli *client.Client, args []string) error {
	counts := make([]int, len(args))
	for i, a := range args {
		c, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("count %q must be an integer", a)
		}
		counts[i] = c
	}
	start := time.Now()
	p, err := cli.Group(name, counts)
	if err != nil {
		return err
	}
	printPartition(p, false, time.Since(start))
	return nil
}

func parseAtom(s string) (common.Atom, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return common.Atom{}, fmt.Errorf("atom %q must be freq:lower:upper", s)
	}
	freq, err := strconv.Atoi(fields[0])
	if err != nil {
		return common.Atom{}, fmt.Errorf("atom %q: %v", s, err)
	}
	lower, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return common.Atom{}, fmt.Errorf("atom %q: %v", s, err)
	}
	upper, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return common.Atom{}, fmt.Errorf("atom %q: %v", s, err)
	}
	return common.Atom{Frequency: freq, LowerBound: lower, UpperBound: upper}, nil
}

func runDiscretize(cli *client.Client, args []string) error {
	atoms := make([]common.Atom, len(args))
	for i, a := range args {
		atom, err := parseAtom(a)
		if err != nil {
			return err
		}
		atoms[i] = atom
	}
	start := time.Now()
	p, err := cli.Discretize(name, atoms)
	if err != nil {
		return err
	}
	printPartition(p, true, time.Since(start))
	return nil
}

func runHistogram(cli *client.Client, args []string) error {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("value %q must be a number", a)
		}
		values[i] = v
	}
	start := time.Now()
	p, err := cli.Histogram(name, values)
	if err != nil {
		return err
	}
	printPartition(p, true, time.Since(start))
	return nil
}

func runStats(cli *client.Client, args []string) error {
	stats, err := cli.Stats()
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runCostsValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var costs []storage.AttributeCost
	if err := json.Unmarshal(data, &costs); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if err := storage.ValidateCosts(costs); err != nil {
		return err
	}
	fmt.Printf("OK: %d attribute costs form a valid prior\n", len(costs))
	return nil
}

func printPartition(p common.Partition, bounded bool, elapsed time.Duration) {
	fmt.Printf("%d parts, cost %.6f (%v)\n", p.K(), p.Cost, elapsed)
	count := 0
	for _, part := range p.Parts {
		if count >= 20 {
			fmt.Printf("... and %d more\n", p.K()-20)
			break
		}
		if bounded {
			fmt.Printf("  ]%g, %g] -> %d\n", part.LowerBound, part.UpperBound, part.Frequency)
		} else {
			fmt.Printf("  [%d..%d] -> %d\n", part.First, part.Last, part.Frequency)
		}
		count++
	}
}

func runShell(cmd *cobra.Command, args []string) error {
	fmt.Printf("MODL CLI (Target: %s)\n", serverAddr)
	fmt.Println("Connecting...")

	cli, err := client.Dial(serverAddr)
	if err != nil {
		fmt.Printf("Connection failed: %v\n", err)
		fmt.Println("Tip: Ensure the server is running (e.g. go run ./cmd/server).")
		return nil
	}
	defer cli.Close()
	fmt.Println("Connected! Type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		command := strings.ToLower(parts[0])

		var err error
		switch command {
		case "group":
			err = runGroup(cli, parts[1:])
		case "discretize", "disc":
			err = runDiscretize(cli, parts[1:])
		case "histogram", "hist":
			err = runHistogram(cli, parts[1:])
		case "stats":
			err = runStats(cli, nil)
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return nil
		default:
			fmt.Printf("Unknown command: '%s'. Type 'help'.\n", command)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
	return nil
}

func printHelp() {
	fmt.Println(`
Commands:
  group <count>...                 Group a categorical variable (counts sorted descending)
  disc <freq:lower:upper>...       Discretize value-ordered intervals
  hist <value>...                  Histogram of raw values
  stats                            Server statistics
  exit                             Exit CLI
	`)
}
