// Package services contains the client's application services: the
// session manager, the file registry and the upload pipeline. They talk to
// the backend only through client.Client.
package services
