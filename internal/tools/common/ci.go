package common

import (
	"encoding/json"
	"fmt"
	"os"
)

type ciResult struct {
	OK      bool     `json:"ok"`
	Name    string   `json:"name"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PrintCIResult emits one machine-readable result line for CI pipelines.
func PrintCIResult(ok bool, name string, details []string, err error) {
	res := ciResult{OK: ok, Name: name, Details: details}
	if err != nil {
		res.Error = err.Error()
	}
	raw, marshalErr := json.Marshal(res)
	if marshalErr != nil {
		fmt.Fprintf(os.Stderr, "marshal ci result: %v\n", marshalErr)
		return
	}
	fmt.Println(string(raw))
}
