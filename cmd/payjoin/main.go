package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"github.com/payjoin-network/payjoin/common"
	payjoinsdk "github.com/payjoin-network/payjoin/pkg/client-sdk"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
	filestore "github.com/payjoin-network/payjoin/pkg/client-sdk/store/file"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const (
	DatadirEnvVar = "PAYJOIN_WALLET_DATADIR"
)

var (
	version = "alpha"

	cntx        = context.Background()
	configStore store.ConfigStore
)

var (
	initCommand = cli.Command{
		Name: "init",
		Usage: "Initialize your wallet with an encryption password, and " +
			"configure how to exchange proposals with counterparties",
		Action: func(ctx *cli.Context) error {
			return initSdk(ctx)
		},
		Flags: []cli.Flag{
			&passwordFlag, &privateKeyFlag, &networkFlag, &exchangeTypeFlag,
			&endpointFlag, &relayUrlFlag, &explorerFlag, &feeRateFlag,
		},
	}

	configCommand = cli.Command{
		Name:  "config",
		Usage: "Shows configuration of the wallet",
		Action: func(ctx *cli.Context) error {
			return config(ctx)
		},
	}

	balanceCommand = cli.Command{
		Name:  "balance",
		Usage: "Shows the confirmed balance of the wallet",
		Action: func(ctx *cli.Context) error {
			return balance(ctx)
		},
		Flags: []cli.Flag{&passwordFlag, &keyFlag},
	}

	addressCommand = cli.Command{
		Name:  "address",
		Usage: "Shows the main address of the wallet",
		Action: func(ctx *cli.Context) error {
			return address(ctx)
		},
		Flags: []cli.Flag{&passwordFlag, &keyFlag},
	}

	receiveCommand = cli.Command{
		Name:  "receive",
		Usage: "Generate a payment request for the given amount",
		Action: func(ctx *cli.Context) error {
			return receive(ctx)
		},
		Flags: []cli.Flag{&passwordFlag, &keyFlag, &amountFlag},
	}

	sendCommand = cli.Command{
		Name:  "send",
		Usage: "Send funds to a receiver, contributing one of their coins to the transaction",
		Action: func(ctx *cli.Context) error {
			return send(ctx)
		},
		Flags: []cli.Flag{&passwordFlag, &keyFlag, &uriFlag, &toFlag, &amountFlag},
	}

	respondCommand = cli.Command{
		Name:  "respond",
		Usage: "Discover pending sessions addressed to this wallet on the relay and respond to them",
		Action: func(ctx *cli.Context) error {
			return respond(ctx)
		},
		Flags: []cli.Flag{&passwordFlag, &keyFlag},
	}

	dumpCommand = cli.Command{
		Name:  "dump-privkey",
		Usage: "Dumps private key of the wallet",
		Action: func(ctx *cli.Context) error {
			return dumpPrivKey(ctx)
		},
		Flags: []cli.Flag{&passwordFlag, &keyFlag},
	}
)

var (
	datadirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Specify the data directory",
		Required: false,
		Value:    btcutil.AppDataDir("payjoin-cli", false),
		EnvVars:  []string{DatadirEnvVar},
	}
	passwordFlag = cli.StringFlag{
		Name:     "password",
		Usage:    "password to unlock the wallet",
		Required: false,
		Hidden:   true,
	}
	keyFlag = cli.StringFlag{
		Name:     "key",
		Usage:    "hex encoded wallet key, as printed by init",
		Required: false,
		Hidden:   true,
	}
	privateKeyFlag = cli.StringFlag{
		Name:  "prvkey",
		Usage: "optional, private key to encrypt",
	}
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "network to use (bitcoin, testnet, regtest)",
		Value: "bitcoin",
	}
	exchangeTypeFlag = cli.StringFlag{
		Name:  "exchange-type",
		Usage: "how to exchange proposals with counterparties (direct or relayed)",
		Value: "direct",
	}
	endpointFlag = cli.StringFlag{
		Name:  "endpoint",
		Usage: "the url of the counterparty endpoint (direct exchange)",
	}
	relayUrlFlag = cli.StringFlag{
		Name:  "relay-url",
		Usage: "the url of the relay directory (relayed exchange)",
	}
	explorerFlag = cli.StringFlag{
		Name:  "explorer",
		Usage: "the url of the explorer to use",
	}
	feeRateFlag = cli.Uint64Flag{
		Name:  "fee-rate",
		Usage: "optional, fee rate in sats per kvbyte",
	}
	uriFlag = cli.StringFlag{
		Name:  "uri",
		Usage: "payment request of the receiver",
	}
	toFlag = cli.StringFlag{
		Name:  "to",
		Usage: "address of the recipient",
	}
	amountFlag = cli.Uint64Flag{
		Name:  "amount",
		Usage: "amount in sats",
	}
)

func main() {
	app := cli.NewApp()

	app.Version = version
	app.Name = "PayJoin CLI"
	app.Usage = "payjoin wallet command line interface"
	app.Commands = append(
		app.Commands,
		&addressCommand,
		&balanceCommand,
		&configCommand,
		&dumpCommand,
		&initCommand,
		&receiveCommand,
		&respondCommand,
		&sendCommand,
	)
	app.Flags = []cli.Flag{
		datadirFlag,
	}

	app.Before = func(ctx *cli.Context) error {
		dataDir := cleanAndExpandPath(ctx.String("datadir"))
		if _, err := os.Stat(dataDir); os.IsNotExist(err) {
			if err := os.MkdirAll(dataDir, os.ModeDir|0755); err != nil {
				return err
			}
		}

		storeSvc, err := filestore.NewConfigStore(dataDir)
		if err != nil {
			return fmt.Errorf("error while initializing config store: %v", err)
		}

		configStore = storeSvc
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func initSdk(ctx *cli.Context) error {
	password, err := readPassword(ctx)
	if err != nil {
		return err
	}

	client, err := payjoinsdk.New(configStore)
	if err != nil {
		return err
	}

	key, err := client.Init(cntx, payjoinsdk.InitArgs{
		WalletType:   payjoinsdk.SingleKeyWallet,
		ExchangeType: ctx.String(exchangeTypeFlag.Name),
		Endpoint:     ctx.String(endpointFlag.Name),
		RelayUrl:     ctx.String(relayUrlFlag.Name),
		ExplorerURL:  ctx.String(explorerFlag.Name),
		Network:      strings.ToLower(ctx.String(networkFlag.Name)),
		FeeRate:      chainfee.SatPerKVByte(ctx.Uint64(feeRateFlag.Name)),
		Key:          ctx.String(privateKeyFlag.Name),
		Password:     string(password),
	})
	if err != nil {
		return err
	}

	// the wallet lives in memory only, the key is needed again on every run
	return printJSON(map[string]interface{}{
		"key": key,
	})
}

func config(ctx *cli.Context) error {
	client, err := payjoinsdk.Load(configStore)
	if err != nil {
		return err
	}

	cfg, err := client.GetConfigData(cntx)
	if err != nil {
		return err
	}

	return printJSON(cfg)
}

func balance(ctx *cli.Context) error {
	client, err := getUnlockedClient(ctx)
	if err != nil {
		return err
	}

	bal, err := client.Balance(cntx)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"balance": bal,
	})
}

func address(ctx *cli.Context) error {
	client, err := getUnlockedClient(ctx)
	if err != nil {
		return err
	}

	addr, err := client.Address(cntx)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"address": addr,
	})
}

func receive(ctx *cli.Context) error {
	amount := ctx.Uint64(amountFlag.Name)
	if amount == 0 {
		return fmt.Errorf("missing amount")
	}

	client, err := getUnlockedClient(ctx)
	if err != nil {
		return err
	}

	uri, err := client.Receive(cntx, btcutil.Amount(amount))
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"payment_request": uri,
	})
}

func send(ctx *cli.Context) error {
	uri := ctx.String(uriFlag.Name)
	to := ctx.String(toFlag.Name)
	amount := ctx.Uint64(amountFlag.Name)

	args := payjoinsdk.SendArgs{
		To:     to,
		Amount: btcutil.Amount(amount),
	}

	if len(uri) > 0 {
		request, err := common.DecodePaymentRequest(uri)
		if err != nil {
			return fmt.Errorf("invalid payment request: %s", err)
		}
		args.To = request.Address
		args.Amount = request.Amount
		args.Endpoint = request.Endpoint
		args.ExchangeType = payjoinsdk.DirectExchange
		if request.Mode == common.ModeRelay {
			args.ExchangeType = payjoinsdk.RelayedExchange
		}
	} else if len(to) <= 0 || amount == 0 {
		return fmt.Errorf("missing destination, either use --uri or --to and --amount")
	}

	client, err := getUnlockedClient(ctx)
	if err != nil {
		return err
	}

	txid, err := client.Send(cntx, args)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"txid": txid,
	})
}

func respond(ctx *cli.Context) error {
	client, err := getUnlockedClient(ctx)
	if err != nil {
		return err
	}

	handled, err := client.RespondPending(cntx)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"handled_sessions": handled,
	})
}

func dumpPrivKey(ctx *cli.Context) error {
	client, err := getUnlockedClient(ctx)
	if err != nil {
		return err
	}

	key, err := client.Dump(cntx)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"private_key": key,
	})
}

func getUnlockedClient(ctx *cli.Context) (payjoinsdk.PayjoinClient, error) {
	client, err := payjoinsdk.Load(configStore)
	if err != nil {
		return nil, err
	}

	password, err := readPassword(ctx)
	if err != nil {
		return nil, err
	}

	key, err := readKey(ctx)
	if err != nil {
		return nil, err
	}

	if err := client.Restore(
		cntx, string(password), strings.TrimSpace(string(key)),
	); err != nil {
		return nil, err
	}

	if err := client.Unlock(cntx, string(password)); err != nil {
		return nil, err
	}

	return client, nil
}

func readPassword(ctx *cli.Context) ([]byte, error) {
	password := []byte(ctx.String(passwordFlag.Name))

	if len(password) == 0 {
		fmt.Print("unlock your wallet with password: ")
		var err error
		password, err = term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // new line
		if err != nil {
			return nil, err
		}
	}

	return password, nil
}

func readKey(ctx *cli.Context) ([]byte, error) {
	key := []byte(ctx.String(keyFlag.Name))

	if len(key) == 0 {
		fmt.Print("restore your wallet with key: ")
		var err error
		key, err = term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // new line
		if err != nil {
			return nil, err
		}
	}

	return key, nil
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}

	fmt.Println(string(jsonBytes))
	return nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
