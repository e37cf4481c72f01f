// command shuttercontrol drives the shutter-control unit: beep
// requests from the bus become parity-tagged commands on the I²C
// bus.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"netz39.org/gatekeeper/bus"
	"netz39.org/gatekeeper/mcu"
	"netz39.org/gatekeeper/shutter"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shuttercontrol: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	mqttHost := flag.String("mqtthost", "localhost", "MQTT host")
	mqttPort := flag.Int("mqttport", 1883, "MQTT port")
	topic := flag.String("topic", "Netz39/Things/Shuttercontrol", "MQTT topic prefix")
	addr := flag.Uint("i2c", 0x22, "I2C address of the shutter-control unit")
	flag.Parse()

	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	log.Println("shuttercontrol: starting shuttercontrol service")

	conn, err := mcu.Open()
	if err != nil {
		return err
	}
	bc, err := bus.Dial(*mqttHost, *mqttPort)
	if err != nil {
		return err
	}
	defer bc.Close()

	beeper := shutter.NewBeeper(conn, uint16(*addr))
	if err := bc.Scope(*topic).Subscribe("Beep", beeper.HandleMessage); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	log.Println("shuttercontrol: SIGINT received, exiting")
	log.Println("shuttercontrol: shuttercontrol service finished")
	return nil
}
