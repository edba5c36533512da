package registry

// Service is a long-running part of the agent started and stopped by the service registry.
type Service interface {
	Start() error
	Stop() error
}
