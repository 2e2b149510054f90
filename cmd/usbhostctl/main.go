// Command usbhostctl is a small demo/debug CLI over the host stack: list
// attached USB devices via sysfs, or drive one through enumeration and
// print what the DSM discovered, grounded on the teacher's cmd/test.go
// but rebuilt around urfave/cli instead of ad-hoc flag parsing.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/112358fn/usbhost"
	"github.com/112358fn/usbhost/drivers"
	"github.com/112358fn/usbhost/hci/usbfslinux"
)

func main() {
	app := cli.NewApp()
	app.Name = "usbhostctl"
	app.Usage = "inspect and enumerate USB devices through the host stack"
	app.Commands = []cli.Command{
		{
			Name:  "list",
			Usage: "list devices visible via sysfs",
			Action: func(c *cli.Context) error {
				devs, err := usbfslinux.FindDevices(0, 0)
				if err != nil {
					return err
				}
				for _, d := range devs {
					fmt.Printf("bus %03d dev %03d  %04x:%04x\n", d.BusNumber, d.DeviceNumber, d.VendorID, d.ProductID)
				}
				return nil
			},
		},
		{
			Name:      "enum",
			Usage:     "drive one device through enumeration",
			ArgsUsage: "<bus> <device>",
			Flags: []cli.Flag{
				cli.DurationFlag{Name: "timeout", Value: 5 * time.Second},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 2 {
					return cli.NewExitError("usage: usbhostctl enum <bus> <device>", 1)
				}
				return runEnum(c)
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runEnum(c *cli.Context) error {
	var bus, dev int
	if _, err := fmt.Sscanf(c.Args().Get(0), "%d", &bus); err != nil {
		return err
	}
	if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &dev); err != nil {
		return err
	}

	hci, err := usbfslinux.Open(bus, dev)
	if err != nil {
		return err
	}
	defer hci.Deinit()

	registry := usbhost.NewDriverRegistry(drivers.NewHub(), drivers.NewHid())
	stack := usbhost.NewStack(hci, registry, usbhost.DefaultConfigTemplates())
	if err := stack.Init(); err != nil {
		return err
	}
	defer stack.Deinit()

	deadline := time.Now().Add(c.Duration("timeout"))
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		stack.Tick()
		stack.Run()
		if d := stack.RootDevice(); d != nil && d.State == usbhost.StateConfigured {
			fmt.Printf("configured: vendor %04x product %04x speed %s, %d interface(s)\n",
				d.VendorID, d.ProductID, d.Speed, d.NumIfaces)
			return nil
		}
		if time.Now().After(deadline) {
			return cli.NewExitError("enumeration timed out", 1)
		}
	}
	return nil
}
