// Command ballotctl computes and checks vote commitments offline, so a voter
// never has to send a secret anywhere before the reveal phase.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"sealed-ballot/commitment"
)

const usage = `usage: ballotctl <command> [flags]

commands:
  secret                                        print a fresh random secret
  commit -candidate N [-secret S]               print the commitment for a vote
  verify -candidate N -secret S -commitment H   check a commitment
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ballotctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "secret":
		secret, err := commitment.NewSecret()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, secret.Dec())
		return nil
	case "commit":
		return runCommit(args[1:], out)
	case "verify":
		return runVerify(args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runCommit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	candidate := fs.Uint64("candidate", 0, "Candidate id")
	secretFlag := fs.String("secret", "", "Secret; a random one is generated when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret, err := commitment.NewSecret()
	if *secretFlag != "" {
		secret, err = commitment.ParseSecret(*secretFlag)
	}
	if err != nil {
		return err
	}

	hash, err := commitment.Commit(*candidate, secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "candidate:  %d\nsecret:     %s\ncommitment: %s\n", *candidate, secret.Dec(), hash.Hex())
	return nil
}

func runVerify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	candidate := fs.Uint64("candidate", 0, "Candidate id")
	secretFlag := fs.String("secret", "", "Secret used for the commitment")
	commitmentFlag := fs.String("commitment", "", "Commitment hash")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret, err := commitment.ParseSecret(*secretFlag)
	if err != nil {
		return err
	}
	hash, err := commitment.ParseCommitment(*commitmentFlag)
	if err != nil {
		return err
	}

	valid, err := commitment.Verify(*candidate, secret, hash)
	if err != nil {
		return err
	}
	if !valid {
		return errors.New("commitment does not match")
	}
	fmt.Fprintln(out, "commitment matches")
	return nil
}
