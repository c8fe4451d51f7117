// pv-keygen mints an API key and prints the values an operator needs to
// provision it: the raw key (shown once), its stored hash, and the display prefix.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/promptvault/gateway/pkg/auth"
)

type keyOutput struct {
	Key     string `json:"key"`
	KeyHash string `json:"key_hash"`
	Prefix  string `json:"prefix"`
}

func main() {
	env := flag.String("env", string(auth.EnvironmentLive), "Key environment (live or test)")
	asJSON := flag.Bool("json", false, "Print JSON instead of text")
	flag.Parse()

	key, err := auth.GenerateAPIKey(auth.Environment(*env))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pv-keygen: %v\n", err)
		os.Exit(1)
	}

	out := keyOutput{
		Key:     key,
		KeyHash: auth.HashAPIKey(key),
		Prefix:  auth.KeyDisplayPrefix(key),
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "pv-keygen: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("key:      %s\n", out.Key)
	fmt.Printf("key_hash: %s\n", out.KeyHash)
	fmt.Printf("prefix:   %s\n", out.Prefix)
	fmt.Println("Store key_hash and prefix; the key itself is not recoverable.")
}
