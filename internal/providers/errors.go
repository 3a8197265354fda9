package providers

import "chatcore/internal/errors"

func notConfigured(providerTag string) error {
	return errors.New(errors.ErrServiceNotInitialized, "no adapter configured for provider: "+providerTag)
}
