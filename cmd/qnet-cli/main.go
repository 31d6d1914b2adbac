package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"qnetclient/activation"
	"qnetclient/bootstrap"
	"qnetclient/bridge"
	"qnetclient/crypto"
	"qnetclient/lightnode"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "new-wallet":
		err = cmdNewWallet(os.Args[2:])
	case "phase":
		err = cmdPhase(ctx, os.Args[2:])
	case "quote":
		err = cmdQuote(ctx, os.Args[2:])
	case "balance":
		err = cmdBalance(ctx, os.Args[2:])
	case "activate":
		err = cmdActivate(ctx, os.Args[2:])
	case "status":
		err = cmdStatus(ctx, os.Args[2:])
	case "server-status":
		err = cmdServerStatus(ctx, os.Args[2:])
	case "reactivate":
		err = cmdReactivate(ctx, os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: qnet-cli <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  new-wallet     Generate a wallet key and save it to an encrypted keystore")
	fmt.Println("  phase          Show the current activation phase and its inputs")
	fmt.Println("  quote          Price a node activation for a class")
	fmt.Println("  balance        Show a wallet's token balance")
	fmt.Println("  activate       Pay for and activate a node")
	fmt.Println("  status         Show the liveness status of a light node")
	fmt.Println("  server-status  Show the monitoring view of a full or super node")
	fmt.Println("  reactivate     Reactivate a degraded light node")
}

// endpointFlags registers the shared --endpoint flag on a subcommand set.
func endpointFlags(fs *flag.FlagSet) *string {
	return fs.String("endpoint", "", "Extra bootstrap endpoint URL (optional)")
}

func selectorFromFlag(endpoint string) *bootstrap.Selector {
	if endpoint == "" {
		return bootstrap.NewSelector()
	}
	return bootstrap.NewSelector(endpoint)
}

func cmdNewWallet(args []string) error {
	fs := flag.NewFlagSet("new-wallet", flag.ExitOnError)
	out := fs.String("out", "wallet.keystore", "Keystore output path")
	fs.Parse(args)

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	passphrase, err := promptPassphrase("Passphrase for new keystore: ")
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*out, key, passphrase); err != nil {
		return fmt.Errorf("save keystore: %w", err)
	}
	fmt.Printf("Wallet address: %s\n", key.PubKey().Address())
	fmt.Printf("Keystore saved to %s\n", *out)
	return nil
}

func cmdPhase(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("phase", flag.ExitOnError)
	endpoint := endpointFlags(fs)
	fs.Parse(args)

	source := bridge.NewClient(selectorFromFlag(*endpoint))
	state, err := activation.NewOracle(source).Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Phase:        %d\n", state.Phase)
	fmt.Printf("Burn percent: %.2f%%\n", state.BurnPercent)
	fmt.Printf("Network age:  %.2f years\n", state.NetworkAgeYears)
	return nil
}

func cmdQuote(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	endpoint := endpointFlags(fs)
	classArg := fs.String("class", "light", "Node class: light, full or super")
	phaseArg := fs.Int("phase", 0, "Require a specific phase (1 or 2); 0 uses the current phase")
	fs.Parse(args)

	class, err := activation.ParseNodeClass(*classArg)
	if err != nil {
		return err
	}
	engine := activation.NewEngine(bridge.NewClient(selectorFromFlag(*endpoint)))

	var quote activation.PriceQuote
	switch *phaseArg {
	case 0:
		quote, err = engine.QuoteCurrent(ctx, class)
	case 1:
		quote, err = engine.Quote(ctx, class, activation.PhaseOne)
	case 2:
		quote, err = engine.Quote(ctx, class, activation.PhaseTwo)
	default:
		return fmt.Errorf("phase must be 1 or 2, got %d", *phaseArg)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Class:    %s\n", quote.Class)
	fmt.Printf("Phase:    %d\n", quote.Phase)
	fmt.Printf("Price:    %s %s\n", quote.Amount, quote.Currency)
	return nil
}

func cmdBalance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	endpoint := endpointFlags(fs)
	wallet := fs.String("wallet", "", "Wallet address")
	token := fs.String("token", activation.BurnTokenSymbol, "Token symbol")
	fs.Parse(args)

	if *wallet == "" {
		return fmt.Errorf("--wallet is required")
	}
	if _, err := crypto.DecodeAddress(*wallet); err != nil {
		return fmt.Errorf("invalid wallet address: %w", err)
	}
	balance, err := bridge.NewClient(selectorFromFlag(*endpoint)).BalanceOf(ctx, *wallet, *token)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", balance, *token)
	return nil
}

func cmdActivate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("activate", flag.ExitOnError)
	endpoint := endpointFlags(fs)
	keystorePath := fs.String("keystore", "wallet.keystore", "Path to the wallet keystore")
	classArg := fs.String("class", "light", "Node class: light, full or super")
	methodArg := fs.String("method", "", "Payment method: burn (phase 1) or transfer (phase 2)")
	fs.Parse(args)

	class, err := activation.ParseNodeClass(*classArg)
	if err != nil {
		return err
	}
	var method activation.Method
	switch *methodArg {
	case "burn":
		method = activation.MethodBurn
	case "transfer":
		method = activation.MethodTransfer
	default:
		return fmt.Errorf("--method must be burn or transfer")
	}

	key, err := unlockKeystore(*keystorePath)
	if err != nil {
		return err
	}
	wallet := key.PubKey().Address().String()

	chain := bridge.NewClient(selectorFromFlag(*endpoint))
	gate := activation.NewGate(chain, chain)

	result, err := gate.Activate(ctx, wallet, class, method)
	if err != nil {
		return err
	}
	fmt.Printf("Activated %s node in phase %d\n", result.Class, result.Phase)
	fmt.Printf("Paid:    %s %s (%s)\n", result.Paid, result.Currency, result.Method)
	fmt.Printf("Tx ref:  %s\n", result.TxRef)
	fmt.Printf("Node id: %s\n", result.NodeID)
	fmt.Println("Run qnet-lightd with -register to start answering liveness pings.")
	return nil
}

func cmdStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	endpoint := endpointFlags(fs)
	nodeID := fs.String("node-id", "", "Light node id")
	fs.Parse(args)

	if *nodeID == "" {
		return fmt.Errorf("--node-id is required")
	}
	client := lightnode.NewClient(selectorFromFlag(*endpoint))
	status, err := client.Status(ctx, *nodeID)
	if err != nil {
		return err
	}
	fmt.Printf("Node:                 %s\n", *nodeID)
	fmt.Printf("Active:               %v\n", status.IsActive)
	fmt.Printf("Push channel:         %s\n", status.PushKind)
	fmt.Printf("Consecutive failures: %d\n", status.ConsecutiveFailures)
	fmt.Printf("Last seen:            %s\n", status.LastSeen.Format(time.RFC3339))
	fmt.Printf("Next ping:            %s\n", status.NextPingTime.Format(time.RFC3339))
	if status.NeedsReactivation {
		fmt.Println("Node needs reactivation. Run: qnet-cli reactivate")
	}
	return nil
}

func cmdServerStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("server-status", flag.ExitOnError)
	endpoint := endpointFlags(fs)
	nodeID := fs.String("node-id", "", "Server node id")
	code := fs.String("code", "", "Activation code")
	fs.Parse(args)

	if *nodeID == "" && *code == "" {
		return fmt.Errorf("--node-id or --code is required")
	}
	client := lightnode.NewClient(selectorFromFlag(*endpoint))
	status, err := client.ServerNodeStatus(ctx, *nodeID, *code)
	if err != nil {
		return err
	}
	fmt.Printf("Online:              %v\n", status.IsOnline)
	fmt.Printf("Heartbeats:          %d/%d\n", status.HeartbeatCount, status.RequiredHeartbeats)
	fmt.Printf("Reward eligible:     %v\n", status.IsRewardEligible)
	fmt.Printf("Pending rewards:     %s %s\n", status.PendingRewards, activation.NativeTokenSymbol)
	return nil
}

func cmdReactivate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reactivate", flag.ExitOnError)
	endpoint := endpointFlags(fs)
	keystorePath := fs.String("keystore", "wallet.keystore", "Path to the wallet keystore")
	nodeID := fs.String("node-id", "", "Light node id")
	fs.Parse(args)

	if *nodeID == "" {
		return fmt.Errorf("--node-id is required")
	}
	key, err := unlockKeystore(*keystorePath)
	if err != nil {
		return err
	}
	signer := crypto.NewUnlockedSigner(key)
	wallet := key.PubKey().Address().String()

	timestamp := time.Now().Unix()
	message := fmt.Sprintf("reactivate:%s:%d", *nodeID, timestamp)
	sig, err := signer.Sign([]byte(message))
	if err != nil {
		return err
	}

	client := lightnode.NewClient(selectorFromFlag(*endpoint))
	result, err := client.Reactivate(ctx, *nodeID, wallet, hex.EncodeToString(sig), timestamp)
	if err != nil {
		return err
	}
	if result.WasReactivated {
		fmt.Println("Node reactivated.")
	} else {
		fmt.Println("Node was already active; nothing to do.")
	}
	fmt.Printf("Next ping: %s\n", result.Schedule.NextPingTime.Format(time.RFC3339))
	return nil
}

func unlockKeystore(path string) (*crypto.PrivateKey, error) {
	passphrase, err := promptPassphrase("Keystore passphrase: ")
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlock keystore %s: %w", path, err)
	}
	return key, nil
}

func promptPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}
