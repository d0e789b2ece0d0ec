package ble

import "tinygo.org/x/bluetooth"

// Blackmagic camera GATT service and characteristics.
const (
	ServiceUUID         = "291D567A-6D75-11E6-8B77-86F30CA893D3"
	OutgoingControlUUID = "5DD3465F-1AEE-4299-8493-D2ECA2F8E1BB"
	IncomingControlUUID = "B864E140-76A0-416A-BF30-5876504537D9"
	StatusUUID          = "7FE8691D-95DC-4FC5-8ABD-CA74339B51B9"
)

var (
	serviceUUID         = mustParse(ServiceUUID)
	outgoingControlUUID = mustParse(OutgoingControlUUID)
	incomingControlUUID = mustParse(IncomingControlUUID)
	statusUUID          = mustParse(StatusUUID)
)

func mustParse(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic("ble: bad uuid " + s + ": " + err.Error())
	}
	return u
}
