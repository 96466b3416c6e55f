/*
Stable pools keep every balance on a common 18-decimal scale. The exchange does not report
token decimals in its pool listing, so the decimals of every token that can appear in a
stable pool are listed here.

A stable pool with a token missing from this map is skipped when the routing graph is built.
Keep it up to date when the exchange lists a new stable pool.
*/

package config

var (
	StableTokenDecimals = map[string]int{
		"6b175474e89094c44da98b954eedeac495271d0f.factory.bridge.near": 18, // DAI
		"a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.factory.bridge.near": 6,  // USDC
		"dac17f958d2ee523a2206206994597c13d831ec7.factory.bridge.near": 6,  // USDT

		"usn": 18, // USN
	}
)
