/*
Package electrum provides an Electrum protocol client implementation,
along with a Cluster type that fans requests out across multiple peers
and cross-checks their answers for agreement.

The Client supports two kinds of operations, synchronous and
asynchronous; most methods are exported as sync operations and only
long-running methods, i.e. subscriptions, are exported as asynchronous.

Subscriptions take a context object that allows the caller to
cancel/close an instance at any given time; subscriptions also return a
channel for data transfer, closed once the context is done.

The client communicates over TLS only; plaintext TCP is not supported.

Creating a Client

First construct and connect a client instance:

  client, err := electrum.New(electrum.ClientOptions{
    Application: "my-app",
    Version:     electrum.Protocol12,
    Host:        "node.xbt.eu",
    Port:        50002,
    KeepAlive:   5 * time.Minute,
  })
  if err != nil {
    // handle construction error
  }
  if _, err := client.Connect(context.Background()); err != nil {
    // handle handshake/dial error
  }

Synchronous Operations

Execute operations as regular methods:

  version, err := client.ServerVersion(ctx)

Subscriptions

Get notifications using regular channels and context:

  ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
  defer cancel()
  headers, err := client.NotifyBlockHeaders(ctx)
  for header := range headers {
    // use header
  }

Terminating a Client

When done with the client instance, free up resources and terminate
network communications:

  client.Disconnect(false)

Clusters

A Cluster holds several Clients against independent peers and answers
each request only once enough of them agree:

  cluster, err := electrum.NewCluster(electrum.ClusterOptions{
    Application:  "my-app",
    Version:      electrum.Protocol12,
    Distribution: 5,
    Confidence:   3,
  })
  for _, host := range hosts {
    cluster.AddServer(ctx, host, 50002)
  }
  balance, err := cluster.AddressBalance(ctx, address)

Protocol specification is available at:
http://docs.electrum.org/en/latest/protocol.html
*/
package electrum
