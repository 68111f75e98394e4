// Package driver provides the consumer loop for an exchange channel:
// fetch the next granted item, hand it to a Handler, and complete it.
package driver
