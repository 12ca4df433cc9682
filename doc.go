// Package gocelery is a Golang client for the celery task queue.
// It allows you to define named tasks, submit them to a broker with
// positional and keyword arguments, and retrieve their outcome later
// from a result backend through an AsyncResult handle.
//
// gocelery speaks the celery wire protocol (v1) so that tasks submitted
// here are picked up and executed by existing celery workers.
//
// gocelery requires a broker and a result backend. rabbitmq, redis and
// nats broker transports are included, along with redis and amqp result
// backends. Any other transport can be plugged in by implementing the
// broker.Broker and backend.Backend interfaces.
package gocelery
