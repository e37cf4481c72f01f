// command doorwatchdog supervises the door against the announced
// space state: a space declared closed above an unlocked door starts
// an audible countdown, then lock commands until the bolt reports
// engaged.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"netz39.org/gatekeeper/bridge"
	"netz39.org/gatekeeper/bus"
	"netz39.org/gatekeeper/schedule"
	"netz39.org/gatekeeper/watchdog"
)

// tick is the cadence of the supervision loop: one watchdog step and
// one scheduler pump per tick.
const tick = 500 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doorwatchdog: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	mqttHost := flag.String("mqtthost", "localhost", "MQTT host")
	mqttPort := flag.Int("mqttport", 1883, "MQTT port")
	topicDoor := flag.String("topicdoor", "Netz39/Things/Door", "MQTT door topic prefix")
	topicState := flag.String("topicstate", "Netz39/SpaceAPI", "MQTT state topic prefix")
	topicShutter := flag.String("topicshutter", "Netz39/Things/Shuttercontrol", "MQTT shutter topic prefix")
	beepPattern := flag.Int("beep", 1, "beep pattern for the countdown alerts")
	flag.Parse()

	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	log.Println("doorwatchdog: starting door watchdog")

	bc, err := bus.Dial(*mqttHost, *mqttPort)
	if err != nil {
		return err
	}
	defer bc.Close()

	doorScope := bc.Scope(*topicDoor)
	shutterScope := bc.Scope(*topicShutter)
	pattern := strconv.Itoa(*beepPattern)

	queue := schedule.New()
	w := watchdog.New(queue, watchdog.Actions{
		Lock: func() {
			if err := doorScope.Publish("Command", bridge.CommandClose); err != nil {
				log.Printf("doorwatchdog: lock command: %v", err)
			}
		},
		Beep: func() {
			if err := shutterScope.Publish("Beep", pattern); err != nil {
				log.Printf("doorwatchdog: beep: %v", err)
			}
		},
	})
	if err := bc.Scope(*topicState).Subscribe("isOpen", w.HandleSpaceMessage); err != nil {
		return err
	}
	if err := doorScope.Subscribe("Events", w.HandleDoorEvent); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	for {
		select {
		case <-sig:
			log.Println("doorwatchdog: SIGINT received, exiting")
			go func() {
				// A second SIGINT skips the graceful shutdown.
				<-sig
				os.Exit(1)
			}()
			log.Println("doorwatchdog: door watchdog finished")
			return nil
		case <-time.After(tick):
			w.Step()
			queue.RunPending()
		}
	}
}
