// command doorservice bridges the door controller to the message
// bus: it reports door, lock and button events and executes lock and
// unlock commands.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"netz39.org/gatekeeper/bridge"
	"netz39.org/gatekeeper/bus"
	"netz39.org/gatekeeper/door"
	"netz39.org/gatekeeper/mcu"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doorservice: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	mqttHost := flag.String("mqtthost", "localhost", "MQTT host")
	mqttPort := flag.Int("mqttport", 1883, "MQTT port")
	topic := flag.String("topic", "Netz39/Things/Door", "MQTT topic prefix")
	addr := flag.Uint("i2c", 0x23, "I2C address of the door controller")
	flag.Parse()

	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	log.Println("doorservice: starting doorstate observer")

	conn, err := mcu.Open()
	if err != nil {
		return err
	}
	bc, err := bus.Dial(*mqttHost, *mqttPort)
	if err != nil {
		return err
	}
	defer bc.Close()

	ctrl := door.NewController(conn, uint16(*addr))
	br := bridge.New(bc.Scope(*topic), ctrl)
	if err := bc.Scope(*topic).Subscribe("Command", br.HandleCommand); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		log.Println("doorservice: SIGINT received, exiting")
		ctrl.Stop()
		// A second SIGINT skips the graceful shutdown.
		<-sig
		os.Exit(1)
	}()

	ctrl.Run(br)
	log.Println("doorservice: doorstate observer finished")
	return nil
}
