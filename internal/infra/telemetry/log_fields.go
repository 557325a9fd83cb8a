package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldKind       = "kind"
	FieldCapability = "capability"
	FieldServerID   = "serverId"
	FieldRemoteKey  = "remoteKey"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
)

const (
	EventDiscovery       = "discovery"
	EventRegister        = "register"
	EventRegisterSkipped = "register_skipped"
	EventForwardSuccess  = "forward_success"
	EventForwardFailure  = "forward_failure"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func KindField(kind string) zap.Field {
	return zap.String(FieldKind, kind)
}

func CapabilityField(name string) zap.Field {
	return zap.String(FieldCapability, name)
}

func ServerIDField(serverID string) zap.Field {
	return zap.String(FieldServerID, serverID)
}

func RemoteKeyField(remoteKey string) zap.Field {
	return zap.String(FieldRemoteKey, remoteKey)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}
