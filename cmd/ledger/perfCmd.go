package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dLedger/cmd/util"
	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/rpc/common"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dLedger servers",
		Long:    "Runs a set of load tests against a dLedger server. Every test works on its own, freshly created ledger which is dropped afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__perf"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfDuration   = 5 * time.Second
	perfSkip       = make([]string, 0)

	// perfTests lists all tests in the order they are run
	perfTests = []perfTest{
		{name: "add", run: perfAdd},
		{name: "get", prepare: perfFill, run: perfGet},
		{name: "amount-category", prepare: perfFill, run: perfAmountByCategory},
		{name: "verify", prepare: perfFill, run: perfVerify},
		{name: "do", prepare: perfFill, run: perfTransfer},
		{name: "do-rejected", prepare: perfFill, run: perfRejected},
		{name: "mixed", prepare: perfFill, run: perfMixed},
	}
)

// perfTest is a single load test. run performs one request for a worker iteration.
type perfTest struct {
	name    string
	prepare func(l ledger.ILedger) error
	run     func(l ledger.ILedger, worker, i int) error
}

// perfResult holds the metrics collected for one test
type perfResult struct {
	name    string
	skipped bool
	timer   metrics.Timer
	errors  metrics.Meter
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Tests to skip (comma separated - e.g. add,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent workers per test"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "duration"
	perfTestCmd.Flags().Int(key, 5, util.WrapString("Duration of each test in seconds"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfDuration = time.Duration(max(1, viper.GetInt("duration"))) * time.Second
	perfSkip = util.SplitList(viper.GetString("skip"))

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dLedger servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Keys: %d, Duration: %s\n", perfNumThreads, perfKeySpread, perfDuration)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := metrics.NewRegistry()
	results := make([]perfResult, 0, len(perfTests))

	for _, test := range perfTests {
		result, err := runPerfTest(test, registry)
		if err != nil {
			return fmt.Errorf("(%s) - %w", test.name, err)
		}
		results = append(results, result)
		printResult(result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest runs test on a fresh ledger with perfNumThreads workers for perfDuration
func runPerfTest(test perfTest, registry metrics.Registry) (perfResult, error) {
	result := perfResult{name: test.name}
	if slices.Contains(perfSkip, test.name) {
		result.skipped = true
		return result, nil
	}

	handle, err := rpcControl.Create()
	if err != nil {
		return result, fmt.Errorf("failed to create ledger: %w", err)
	}
	defer func() {
		if _, err := rpcControl.Drop(handle); err != nil {
			fmt.Printf("(%s) - error dropping ledger %d: %v\n", test.name, handle, err)
		}
	}()
	l := rpcControl.Ledger(handle)

	if test.prepare != nil {
		if err := test.prepare(l); err != nil {
			return result, fmt.Errorf("failed to prepare ledger: %w", err)
		}
	}

	result.timer = metrics.GetOrRegisterTimer(test.name, registry)
	result.errors = metrics.GetOrRegisterMeter(test.name+".errors", registry)

	deadline := time.Now().Add(perfDuration)
	var wg sync.WaitGroup
	for w := 0; w < perfNumThreads; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; time.Now().Before(deadline); i++ {
				start := time.Now()
				err := test.run(l, worker, i)
				result.timer.UpdateSince(start)
				if err != nil {
					result.errors.Mark(1)
				}
			}
		}(w)
	}
	wg.Wait()

	return result, nil
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func perfKey(i int) string {
	return fmt.Sprintf("%s-%d", perfKeyPrefix, i%perfKeySpread)
}

// perfFill creates every key with a large quantity
func perfFill(l ledger.ILedger) error {
	for i := 0; i < perfKeySpread; i++ {
		if err := l.Add(perfKey(i), uint32(i%10), uint64(i%7), 1<<40); err != nil {
			return err
		}
	}
	return nil
}

func perfAdd(l ledger.ILedger, worker, i int) error {
	return l.Add(perfKey(worker+i), uint32(i%10), uint64(i%7), 1)
}

func perfGet(l ledger.ILedger, worker, i int) error {
	_, err := l.Get(perfKey(worker + i))
	return err
}

func perfAmountByCategory(l ledger.ILedger, _, i int) error {
	_, err := l.AmountByCategory(uint32(i % 10))
	return err
}

func perfVerify(l ledger.ILedger, worker, i int) error {
	_, err := l.VerifyOps(transferOps(worker, i))
	return err
}

func perfTransfer(l ledger.ILedger, worker, i int) error {
	_, err := l.DoOps(transferOps(worker, i))
	return err
}

// perfRejected sends batches that are always infeasible, a rejection is the expected outcome
func perfRejected(l ledger.ILedger, worker, i int) error {
	_, err := l.DoOps([]ledger.Op{
		ledger.Increment(perfKey(worker+i+1), 0, 0, 1),
		ledger.Decrement(perfKey(worker+i), 1<<62),
	})
	if errors.Is(err, ledger.ErrIllegalOperations) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("infeasible batch was accepted")
	}
	return err
}

func perfMixed(l ledger.ILedger, worker, i int) error {
	var err error
	switch i % 4 {
	case 0:
		err = l.Add(perfKey(worker+i), 0, 0, 1)
	case 1:
		_, err = l.Amount(perfKey(worker + i))
	case 2:
		_, err = l.GetByTemplate(uint64(i % 7))
	case 3:
		_, err = l.DoOps(transferOps(worker, i))
	}
	return err
}

// transferOps moves one unit between two keys, the total quantity stays constant
func transferOps(worker, i int) []ledger.Op {
	from, to := worker+i, worker+i+1
	return []ledger.Op{
		ledger.Decrement(perfKey(from), 1),
		ledger.Increment(perfKey(to), uint32(to%perfKeySpread%10), uint64(to%perfKeySpread%7), 1),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printResult prints the result of a test in a formatted way
func printResult(result perfResult) {
	if result.skipped {
		fmt.Printf("%-20sskipped\n", result.name)
		return
	}

	t := result.timer.Snapshot()
	fmt.Printf("%-20s%8d req\t%.0f req/sec\tmean %s\tp50 %s\tp99 %s\terrors %d\n",
		result.name,
		t.Count(),
		t.RateMean(),
		time.Duration(t.Mean()),
		time.Duration(t.Percentile(0.5)),
		time.Duration(t.Percentile(0.99)),
		result.errors.Count(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Requests", "ReqPerSec", "MeanNs", "P50Ns", "P99Ns", "MaxNs", "Errors", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Serializer", "Transport", "Threads", "Keys", "DurationSec",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, result := range results {
		row := []string{result.name}
		if result.skipped {
			row = append(row, "0", "0", "0", "0", "0", "0", "0", "true")
		} else {
			t := result.timer.Snapshot()
			row = append(row,
				strconv.FormatInt(t.Count(), 10),
				fmt.Sprintf("%.0f", t.RateMean()),
				fmt.Sprintf("%.0f", t.Mean()),
				fmt.Sprintf("%.0f", t.Percentile(0.5)),
				fmt.Sprintf("%.0f", t.Percentile(0.99)),
				strconv.FormatInt(t.Max(), 10),
				strconv.FormatInt(result.errors.Count(), 10),
				"false",
			)
		}
		row = append(row,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(int(perfDuration/time.Second)),
		)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", result.name, err)
		}
	}

	return nil
}
