package mqttbridge

import (
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"telemetry-go/errcode"
)

// PublishTimeout bounds the wait for a broker acknowledgement.
const PublishTimeout = 5 * time.Second

// ClientOptionsFromURL creates ClientOptions from a broker URL of the form
// mqtt://[user[:pass]@]host:port/prefix[?client-id=id]. It returns the topic
// prefix taken from the path.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", errcode.Wrap(errcode.InvalidParams, "mqttbridge.url", err)
	}
	if u.Host == "" {
		return nil, "", &errcode.E{C: errcode.InvalidParams, Op: "mqttbridge.url", Msg: "missing host in " + serverURL}
	}
	server := u.Scheme
	if server == "" || server == "mqtt" {
		server = "tcp"
	}
	server += "://" + u.Host

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// Client is a Publisher backed by a paho connection.
type Client struct {
	c paho.Client
}

// Dial connects to the broker. clientID is used when the URL names none.
// It returns the client and the URL's topic prefix.
func Dial(serverURL, clientID string) (*Client, string, error) {
	opts, prefix, err := ClientOptionsFromURL(serverURL)
	if err != nil {
		return nil, "", err
	}
	if opts.ClientID == "" {
		opts.SetClientID(clientID)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqttbridge: connection lost: %v", err)
	})
	c := paho.NewClient(opts)
	token := c.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, "", errcode.Wrap(errcode.Error, "mqttbridge.connect", err)
	}
	glog.Infof("mqttbridge: connected to %s", opts.Servers[0].Host)
	return &Client{c: c}, prefix, nil
}

func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	token := c.c.Publish(topic, 0, retain, payload)
	if !token.WaitTimeout(PublishTimeout) {
		return errcode.Timeout
	}
	return token.Error()
}

// Close implements io.Closer.
func (c *Client) Close() error {
	c.c.Disconnect(250)
	return nil
}
