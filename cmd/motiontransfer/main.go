// Command motiontransfer animates a source image with the motion of a driving video.
package main

import "github.com/maauso/motiontransfer/internal/cli"

func main() {
	cli.Main()
}
