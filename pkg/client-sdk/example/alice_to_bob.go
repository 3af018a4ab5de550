package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/payjoin-network/payjoin/common"
	payjoinsdk "github.com/payjoin-network/payjoin/pkg/client-sdk"
	inmemorystore "github.com/payjoin-network/payjoin/pkg/client-sdk/store/inmemory"
	log "github.com/sirupsen/logrus"
)

// Runs a full collaborative payment on regtest: Alice pays Bob through
// a relayed exchange against a local payjoind. Requires nigiri and a
// payjoind listening on localhost:7070.
func main() {
	var (
		explorerUrl = "http://localhost:3000"
		network     = "regtest"
		relayUrl    = "http://localhost:7070"
		password    = "password"

		ctx = context.Background()
	)

	aliceStore, err := inmemorystore.NewConfigStore()
	if err != nil {
		log.Fatal(err)
	}

	aliceClient, err := payjoinsdk.New(aliceStore)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := aliceClient.Init(ctx, payjoinsdk.InitArgs{
		WalletType:   payjoinsdk.SingleKeyWallet,
		ExchangeType: payjoinsdk.RelayedExchange,
		RelayUrl:     relayUrl,
		ExplorerURL:  explorerUrl,
		Network:      network,
		Password:     password,
	}); err != nil {
		log.Fatal(err)
	}

	if err := aliceClient.Unlock(ctx, password); err != nil {
		log.Fatal(err)
	}

	aliceAddr, err := aliceClient.Address(ctx)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := runCommand("nigiri", "faucet", aliceAddr); err != nil {
		log.Fatal(err)
	}

	bobStore, err := inmemorystore.NewConfigStore()
	if err != nil {
		log.Fatal(err)
	}

	bobClient, err := payjoinsdk.New(bobStore)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := bobClient.Init(ctx, payjoinsdk.InitArgs{
		WalletType:   payjoinsdk.SingleKeyWallet,
		ExchangeType: payjoinsdk.RelayedExchange,
		RelayUrl:     relayUrl,
		ExplorerURL:  explorerUrl,
		Network:      network,
		Password:     password,
	}); err != nil {
		log.Fatal(err)
	}

	if err := bobClient.Unlock(ctx, password); err != nil {
		log.Fatal(err)
	}

	bobAddr, err := bobClient.Address(ctx)
	if err != nil {
		log.Fatal(err)
	}

	// Bob needs a coin of his own to contribute to the payment.
	if _, err := runCommand("nigiri", "faucet", bobAddr); err != nil {
		log.Fatal(err)
	}

	if err := generateBlock(); err != nil {
		log.Fatal(err)
	}

	aliceBalance, err := aliceClient.Balance(ctx)
	if err != nil {
		log.Fatal(err)
	}
	bobBalance, err := bobClient.Balance(ctx)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("Alice balance: %d", aliceBalance)
	log.Infof("Bob balance: %d", bobBalance)

	uri, err := bobClient.Receive(ctx, btcutil.Amount(21000))
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("Bob requests payment with %s", uri)

	request, err := common.DecodePaymentRequest(uri)
	if err != nil {
		log.Fatal(err)
	}

	// The relayed exchange blocks until the receiver responds, so Alice
	// sends from a goroutine while Bob drains his pending sessions.
	var txid string
	sendDone := make(chan error, 1)
	go func() {
		id, err := aliceClient.Send(ctx, payjoinsdk.SendArgs{
			To:           request.Address,
			Amount:       request.Amount,
			Endpoint:     request.Endpoint,
			ExchangeType: payjoinsdk.RelayedExchange,
		})
		txid = id
		sendDone <- err
	}()

	var handled []string
	for len(handled) <= 0 {
		time.Sleep(2 * time.Second)

		handled, err = bobClient.RespondPending(ctx)
		if err != nil {
			log.Fatal(err)
		}
	}

	if err := <-sendDone; err != nil {
		log.Fatal(err)
	}

	log.Infof("Alice paid Bob with txid: %s", txid)

	if err := generateBlock(); err != nil {
		log.Fatal(err)
	}

	aliceBalance, err = aliceClient.Balance(ctx)
	if err != nil {
		log.Fatal(err)
	}
	bobBalance, err = bobClient.Balance(ctx)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("Alice balance: %d", aliceBalance)
	log.Infof("Bob balance: %d", bobBalance)
}

func runCommand(name string, arg ...string) (string, error) {
	errb := new(strings.Builder)
	cmd := newCommand(name, arg...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}

	if err := cmd.Start(); err != nil {
		return "", err
	}
	output := new(strings.Builder)
	errorb := new(strings.Builder)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if _, err := io.Copy(output, stdout); err != nil {
			fmt.Fprintf(errb, "error reading stdout: %s", err)
		}
	}()

	go func() {
		defer wg.Done()
		if _, err := io.Copy(errorb, stderr); err != nil {
			fmt.Fprintf(errb, "error reading stderr: %s", err)
		}
	}()

	wg.Wait()
	if err := cmd.Wait(); err != nil {
		if errMsg := errorb.String(); len(errMsg) > 0 {
			return "", fmt.Errorf(errMsg)
		}

		if outMsg := output.String(); len(outMsg) > 0 {
			return "", fmt.Errorf(outMsg)
		}

		return "", err
	}

	if errMsg := errb.String(); len(errMsg) > 0 {
		return "", fmt.Errorf(errMsg)
	}

	return strings.Trim(output.String(), "\n"), nil
}

func newCommand(name string, arg ...string) *exec.Cmd {
	cmd := exec.Command(name, arg...)
	return cmd
}

func generateBlock() error {
	if _, err := runCommand(
		"nigiri", "rpc", "generatetoaddress", "1",
		"bcrt1qe8nv9ggwmvr2lf2kacvjkw4pe4lh8fu82xlvwg",
	); err != nil {
		return err
	}

	time.Sleep(6 * time.Second)
	return nil
}
