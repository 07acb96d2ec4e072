package main

import (
	"os"

	"github.com/goplus/qjsys/cmd/qjsys/internal"
)

func main() {
	os.Exit(internal.Execute())
}
