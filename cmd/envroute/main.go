// Envroute inspects and changes the environment routing state of a
// mini-program client.
//
// It resolves which backend (development, testing or production) requests
// go to, manages the persisted manual environment and base URL overrides,
// and sends test requests through the interceptor.
//
// Usage:
//
//	# Show the resolved environment
//	envroute resolve
//
//	# Point testing at a LAN server and pin it
//	envroute force-testing 192.168.1.10
//
//	# Send a request through the interceptor
//	envroute fetch xuesheng/login --method POST --data '{"user":"a"}'
//
//	# Check for common device setup mistakes
//	envroute diagnose
package main

import "os"

func main() {
	os.Exit(Execute())
}
