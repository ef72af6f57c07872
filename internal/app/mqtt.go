package app

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, token.Error())
	}
	log.Infof("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

func publish(client mqtt.Client, topic string, retained bool, payload []byte) error {
	token := client.Publish(topic, 0, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

func publishJSON(client mqtt.Client, topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", topic, err)
	}
	return publish(client, topic, retained, payload)
}

func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Infof("subscribed to MQTT topic %s", topic)
	return nil
}

// feedHub mirrors the companion state and worker status topics into h.
func feedHub(client mqtt.Client, h *Hub, stateTopic, statusTopic string) error {
	err := subscribe(client, stateTopic, func(_ mqtt.Client, msg mqtt.Message) {
		var s CompanionState
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.WithError(err).Warn("companion state unmarshal error")
			return
		}
		h.SetCompanion(s)
	})
	if err != nil {
		return err
	}

	return subscribe(client, statusTopic, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := decodeStatus(msg.Payload())
		if err != nil {
			log.WithError(err).Warn("worker status unmarshal error")
			return
		}
		h.SetWorker(s)
	})
}
