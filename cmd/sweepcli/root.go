package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ligun0805/wallet-sweep/internal/app"
	"github.com/ligun0805/wallet-sweep/internal/config"
	"github.com/ligun0805/wallet-sweep/internal/logging"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

// cli carries what the persistent pre-run resolved for the subcommands.
type cli struct {
	configFile string
	yes        bool

	settings config.Settings
	logs     io.Closer
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep native balances from many wallets into one address",
		Long: `Sweep sends the whole balance of every wallet in the keys file, minus a
fee reserve, to the destination address. Settings come from .env,
.env.local, an optional config file, the environment and flags, with
flags winning.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logs != nil {
				_ = c.logs.Close()
			}
		},
	}
	fs := root.PersistentFlags()
	fs.StringVar(&c.configFile, "config", "", "config file (yaml, toml or json)")
	addSettingFlags(fs)

	root.AddCommand(c.newRunCmd(), c.newCheckCmd())
	return root
}

// addSettingFlags declares one flag per setting. Defaults live in the
// config package, so the zero values here are never used unless set.
func addSettingFlags(fs *pflag.FlagSet) {
	fs.String("rpc-urls", "", "comma separated RPC endpoints, tried in order")
	fs.Int64("chain-id", 0, "chain id to sign for (0 uses the endpoint's)")
	fs.String("destination-file", "", "file holding the destination address")
	fs.String("keys-file", "", "file with one private key per line, - for stdin")
	fs.String("tx-log-file", "", "CSV log of sent transfers (truncated per run)")
	fs.String("error-log-file", "", "CSV log of failures (appended)")
	fs.Int("workers", 0, "wallets processed concurrently")
	fs.String("fee-mode", "", "gas or flat")
	fs.String("tx-type", "", "dynamic or legacy")
	fs.String("max-fee-gwei", "", "fee cap per gas")
	fs.String("priority-fee-gwei", "", "priority fee per gas")
	fs.Uint64("gas-limit", 0, "gas limit of a transfer")
	fs.String("flat-reserve-eth", "", "reserve kept back in flat mode")
	fs.Duration("confirm-timeout", 0, "how long to wait for a receipt")
	fs.Duration("poll-interval", 0, "receipt polling interval")
	fs.Duration("probe-timeout", 0, "per endpoint probe timeout")
	fs.Int("retry-attempts", 0, "attempts per RPC call")
	fs.Float64("rpc-rate-limit", 0, "max RPC requests per second, 0 for no limit")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Bool("log-pretty", true, "human readable log lines")
	fs.String("log-file", "", "also write JSON logs to this rotated file")
	fs.String("ui", "", "auto, plain, color or dashboard")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	config.LoadDotenv()
	v := config.New()
	if err := config.ReadFile(v, c.configFile); err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	st, err := config.Load(v)
	if err != nil {
		return err
	}
	c.settings = st
	c.logs, err = logging.Setup(logging.Config{Level: st.LogLevel, Pretty: st.LogPretty, File: st.LogFile}, os.Stderr)
	return err
}

func (c *cli) runOptions() (app.RunOptions, error) {
	opts := app.RunOptions{}
	if c.settings.KeysFile == "-" {
		creds, err := readKeysFromStdin()
		if err != nil {
			return opts, err
		}
		opts.Credentials = creds
	}
	return opts, nil
}

func (c *cli) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep every wallet into the destination",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := c.runOptions()
			if err != nil {
				return err
			}
			printConfig(os.Stdout, c.settings, len(opts.Credentials))
			if !c.yes && stdinIsTerminal() && c.settings.KeysFile != "-" {
				if !yes(strings.ToLower(readLine("Start sweep? [y/N]: "))) {
					fmt.Println("Aborted.")
					return nil
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := app.Run(ctx, c.settings, opts)
			if err != nil {
				return err
			}
			log.Info().
				Str("run_id", summary.RunID).
				Int("sent", summary.Sent()).
				Int("skipped", summary.Skipped()).
				Int("failed", summary.Failed()).
				Str("amount_eth", summary.AmountSentETH()).
				Msg("Sweep: finished")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&c.yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (c *cli) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect and show what a run would send, without sending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := c.runOptions()
			if err != nil {
				return err
			}
			p, plans, err := app.Check(cmd.Context(), c.settings, opts)
			if err != nil {
				return err
			}
			printPlans(os.Stdout, p, plans)
			return nil
		},
	}
}

func printConfig(w io.Writer, st config.Settings, stdinKeys int) {
	keys := st.KeysFile
	if keys == "-" {
		keys = fmt.Sprintf("stdin (%d keys)", stdinKeys)
	}
	fmt.Fprintln(w, "=== CONFIG ===")
	fmt.Fprintln(w, "RPC_URLS          :", strings.Join(maskURLs(st.RPCURLs), ", "))
	fmt.Fprintln(w, "CHAIN_ID          :", chainIDLabel(st.ChainID))
	fmt.Fprintln(w, "DESTINATION_FILE  :", st.DestinationFile)
	fmt.Fprintln(w, "KEYS_FILE         :", keys)
	fmt.Fprintln(w, "TX_LOG_FILE       :", st.TxLogFile)
	fmt.Fprintln(w, "ERROR_LOG_FILE    :", st.ErrorLogFile)
	fmt.Fprintln(w, "Workers           :", st.Workers)
	fmt.Fprintln(w, "Fee mode          :", st.FeeMode, "/", st.TxType)
	if core.FeeMode(st.FeeMode) == core.FeeModeFlat {
		fmt.Fprintln(w, "Reserve (ETH)     :", st.FlatReserveETH)
	} else {
		fmt.Fprintln(w, "Max fee (gwei)    :", st.MaxFeeGwei)
		fmt.Fprintln(w, "Priority (gwei)   :", st.PriorityFeeGwei)
		fmt.Fprintln(w, "Gas limit         :", st.GasLimit)
	}
	fmt.Fprintln(w, "==============")
}

func chainIDLabel(id int64) string {
	if id == 0 {
		return "from endpoint"
	}
	return fmt.Sprint(id)
}

func printPlans(w io.Writer, p *app.Prepared, plans []core.Plan) {
	fmt.Fprintf(w, "Endpoint %s, chain %s, destination %s\n", maskURL(p.Active.URL), p.ChainID, p.Destination.Hex())
	fmt.Fprintf(w, "Reserve per wallet: %s ETH\n", core.FormatETH(p.Reserve))
	total := 0
	for _, pl := range plans {
		switch pl.Status {
		case core.StatusSent:
			total++
			fmt.Fprintf(w, "%4d  %s  balance %s  would send %s\n", pl.Index+1, pl.Address.Hex(), core.FormatETH(pl.Balance), core.FormatETH(pl.Amount))
		case core.StatusFailed:
			fmt.Fprintf(w, "%4d  %s  error: %s\n", pl.Index+1, pl.Address.Hex(), pl.Err)
		default:
			fmt.Fprintf(w, "%4d  %s  balance %s  %s\n", pl.Index+1, pl.Address.Hex(), core.FormatETH(pl.Balance), pl.Status)
		}
	}
	fmt.Fprintf(w, "%d of %d wallets would send\n", total, len(plans))
}

// Execute runs the root command and exits 1 on any error.
func Execute() {
	if err := (&cli{}).rootCmd().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("Sweep: failed")
		die(err.Error())
	}
}
