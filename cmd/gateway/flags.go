package main

import (
	"flag"
	"fmt"
)

// Global constants.
const (
	appName = "gateway"
)

// versionString is overridden at build time via -ldflags.
var versionString = "dev"

// Flag name constants.
const (
	configFlag       = "config"
	helpFlag         = "help"
	sampleConfigFlag = "sampleconfig"
	versionFlag      = "version"
)

// Flags.
var (
	fConfig       = flag.String(configFlag, "", "")
	fHelp         = flag.Bool(helpFlag, false, "")
	fSampleConfig = flag.Bool(sampleConfigFlag, false, "")
	fVersion      = flag.Bool(versionFlag, false, "")
)

// usage outputs usage information.
func usage() {
	fmt.Printf("usage: %s [options]\n", appName)
	fmt.Println()
	fmt.Printf("%s is a REST gateway in front of the EJBCA SOAP web service.\n", appName)
	fmt.Printf("It authenticates to the certificate authority with a PKCS#12 client\n")
	fmt.Printf("credential bundle and exposes certificate lifecycle operations as JSON\n")
	fmt.Printf("endpoints.\n")
	fmt.Println()
	const fw = 16
	fmt.Println("Options:")
	fmt.Printf("    -%-*s path to configuration file\n", fw, configFlag+" <path>")
	fmt.Printf("    -%-*s show this usage information\n", fw, helpFlag)
	fmt.Printf("    -%-*s output a sample configuration file\n", fw, sampleConfigFlag)
	fmt.Printf("    -%-*s show version information\n", fw, versionFlag)
	fmt.Println()
}

// version outputs version information.
func version() {
	fmt.Printf("EJBCA REST Gateway %s\n", versionString)
}
