package circuitbreak

import "github.com/voxaide/switchboard/internal/logging"

var CircuitBreakChan chan string

const (
	TwilioService        = "twilio"
	VapiService          = "vapi"
	InsightsService      = "insights"
	DBService            = "database"
	StorageService       = "storage"
	KafkaProducerService = "kafka_producer"
)

func Init() {
	CircuitBreakChan = make(chan string)
}

func TriggerError(service string) {
	if CircuitBreakChan == nil {
		logging.Logger.Fatal("switchboard app is not created")
	}

	CircuitBreakChan <- service
}
