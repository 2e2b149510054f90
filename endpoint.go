package usbhost

type (
	TransferType        uint8
	SynchronizationType uint8
	UsageType           uint8
)

const (
	TransferTypeControl = TransferType(iota)
	TransferTypeIsochronous
	TransferTypeBulk
	TransferTypeInterrupt
)

const (
	SynchronizationTypeNoSync = SynchronizationType(iota)
	SynchronizationTypeAsynchronous
	SynchronizationTypeAdaptive
	SynchronizationTypeSynchronous
)

const (
	UsageTypeData = UsageType(iota)
	UsageTypeFeedback
	UsageTypeExplicitFeedbackData
	UsageTypeReserved
)

const (
	EndpointDirectionIn  = 0x80
	EndpointDirectionOut = 0x00
)

func transferTypeOf(bmAttributes uint8) TransferType {
	return TransferType(bmAttributes & 0b00000011)
}
