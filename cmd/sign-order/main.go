// sign-order produces signed request bodies for the REST API. With no key
// it generates a fresh pair and prints it, so the output is immediately
// usable against a devnet with a bank ledger.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/kyuho-lee/tokendex/pkg/api"
	"github.com/kyuho-lee/tokendex/pkg/crypto"
)

func main() {
	var (
		keyHex   = flag.String("key", "", "hex private key (generates one if empty)")
		asset    = flag.String("asset", "", "asset contract address")
		amount   = flag.Int64("amount", 0, "order amount in minor units")
		price    = flag.Int64("price", 0, "limit price in minor units")
		buy      = flag.Bool("buy", false, "buy side (default sell)")
		cancelID = flag.Uint64("cancel", 0, "cancel this order id instead of creating")
		nonce    = flag.Int64("nonce", 0, "signature nonce (default: unix ms)")
	)
	flag.Parse()

	signer, err := loadSigner(*keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n := *nonce
	if n == 0 {
		n = time.Now().UnixMilli()
	}

	var body interface{}
	switch {
	case *cancelID != 0:
		sig, err := signer.Sign(crypto.CancelDigest(*cancelID, n))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error signing: %v\n", err)
			os.Exit(1)
		}
		body = api.CancelOrderRequest{
			OrderID:   *cancelID,
			Nonce:     n,
			Signature: hexutil.Encode(sig),
		}
	default:
		if !common.IsHexAddress(*asset) {
			fmt.Fprintln(os.Stderr, "Error: -asset must be a hex address")
			os.Exit(1)
		}
		if *amount <= 0 || *price <= 0 {
			fmt.Fprintln(os.Stderr, "Error: -amount and -price must be positive")
			os.Exit(1)
		}
		addr := common.HexToAddress(*asset)
		sig, err := signer.Sign(crypto.OrderDigest(addr, *amount, *price, *buy, n))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error signing: %v\n", err)
			os.Exit(1)
		}
		body = api.CreateOrderRequest{
			Asset:     addr.Hex(),
			Amount:    *amount,
			Price:     *price,
			IsBuy:     *buy,
			Nonce:     n,
			Signature: hexutil.Encode(sig),
		}
	}

	out, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signer: %s\n\n%s\n", signer.Address().Hex(), out)
}

func loadSigner(keyHex string) (*crypto.Signer, error) {
	if keyHex != "" {
		return crypto.FromPrivateKeyHex(keyHex)
	}
	signer, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	fmt.Println("Generating new keypair...")
	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())
	return signer, nil
}
