// Package api exposes the installer over HTTP for a browser front end.
//
// Every response is the JSON result envelope. Once the completion marker
// exists, mutating routes answer 403.
package api
