package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Alert mirrors the monitor's published alert payload
type Alert struct {
	DeviceID   string   `json:"device_id"`
	DeviceName string   `json:"device_name"`
	Severity   string   `json:"severity"`
	Subject    string   `json:"subject"`
	Issues     []string `json:"issues"`
}

// Tails the monitor's MQTT alert topic for manual verification.
func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	username := flag.String("username", "", "MQTT username")
	password := flag.String("password", "", "MQTT password")
	topic := flag.String("topic", "alerts/#", "topic filter to subscribe to")
	flag.Parse()

	opts := paho.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("alert-subscriber-%d", time.Now().Unix()))
	if *username != "" {
		opts.SetUsername(*username)
		opts.SetPassword(*password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		fmt.Printf("connection lost: %v\n", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Printf("failed to connect to MQTT broker: %v\n", token.Error())
		os.Exit(1)
	}
	fmt.Printf("connected to MQTT broker: %s\n", *broker)

	token := client.Subscribe(*topic, 0, func(_ paho.Client, msg paho.Message) {
		var alert Alert
		if err := json.Unmarshal(msg.Payload(), &alert); err != nil {
			fmt.Printf("[%s] unparseable payload: %s\n", msg.Topic(), msg.Payload())
			return
		}
		timestamp := time.Now().Format("15:04:05")
		fmt.Printf("[%s] %s %s (%s)\n", timestamp, alert.Severity, alert.DeviceName, alert.DeviceID)
		for _, issue := range alert.Issues {
			fmt.Printf("    - %s\n", issue)
		}
	})
	if token.Wait() && token.Error() != nil {
		fmt.Printf("failed to subscribe to %s: %v\n", *topic, token.Error())
		os.Exit(1)
	}
	fmt.Printf("subscribed to %s, waiting for alerts...\n", *topic)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	client.Disconnect(250)
}
