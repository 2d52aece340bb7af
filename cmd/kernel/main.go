//go:build qemuvirt && aarch64

// Command kernel is the bare-metal entry point: a normal Go main(),
// called directly by the TamaGo runtime's own startup code once it has
// set up a stack and cleared BSS, with no boot.s of our own to write
// (see arch/arm64's package doc for why this repo's vector table and
// register frame exist where the teacher's never did).
//
// Grounded on the teacher's src/go/mazarin/kernel.go KernelMain/main
// split, generalized here from its c-archive "dummy main calls
// KernelMain" idiom (required only because that build targets GOOS=linux
// and boots via a separate boot.s) to TamaGo's convention, cross-checked
// against other_examples/usbarmory-tamago: main is the real entry point,
// not a placeholder kept alive for the linker.
package main

import "vela/internal/kernel"

func main() {
	kernel.Boot()
}
