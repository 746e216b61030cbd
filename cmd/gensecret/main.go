// Command gensecret prints random hex key suitable for JWT_SECRET
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const (
	defaultBytesLen = 32
	minBytesLen     = 32 // HS256 key should be at least as long as the hash output
)

func generate(w io.Writer, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	n := fs.IntP("bytes", "n", defaultBytesLen, "Number of random bytes in key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < minBytesLen {
		return fmt.Errorf("key must be at least %d bytes, got %d", minBytesLen, *n)
	}

	b := make([]byte, *n)
	if _, err := rand.Read(b); err != nil {
		return errors.Join(errors.New("error while generating secret key"), err)
	}

	_, err := fmt.Fprintln(w, hex.EncodeToString(b))
	return err
}

func main() {
	if err := generate(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
