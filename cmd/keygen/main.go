package main

import (
	"fmt"

	"github.com/etale-systems/tracehub/internal/apikey"
)

// keygen prints a freshly generated API token for bootstrap and
// testing. Production tokens are issued through POST /apikeys so the
// record lands in storage.
func main() {
	token := apikey.GenerateToken()

	fmt.Printf("API Key: %s\n", token)
	fmt.Println("\nSubmit traces with it:")
	fmt.Printf("  curl -X POST http://localhost:8080/traces \\\n")
	fmt.Printf("    -H 'X-API-Key: %s' \\\n", token)
	fmt.Printf("    -H 'Content-Type: application/json' \\\n")
	fmt.Printf("    -d '{\"task\": \"example\", \"context\": {}, \"model_output\": \"\", \"metadata\": {}}'\n")
}
