package eventpubsub

import (
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

var bus EventBus.Bus

func Init() {
	bus = EventBus.New()
}

func Publish(topic string, event interface{}) {
	bus.Publish(topic, event)
}

func Subscribe(topic string, callbackFn interface{}) error {
	if err := bus.SubscribeAsync(topic, callbackFn, false); err != nil {
		return err
	}

	log.Infof("Subscribed to topic %s", topic)
	return nil
}

func SubscribeSync(topic string, callbackFn interface{}) error {
	if err := bus.Subscribe(topic, callbackFn); err != nil {
		return err
	}

	log.Infof("Subscribed to topic %s (sync)", topic)
	return nil
}

func Unsubscribe(topic string, callbackFn interface{}) error {
	return bus.Unsubscribe(topic, callbackFn)
}

func PublishError(publisherName string, err error) {
	log.WithField("publisher", publisherName).Error(err)
	bus.Publish(Error, err)
}
