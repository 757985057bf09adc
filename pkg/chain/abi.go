package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const filmABIJSON = `[
 {"type":"function","name":"createFilm","stateMutability":"nonpayable","inputs":[
  {"name":"title","type":"string"},{"name":"description","type":"string"},{"name":"genre","type":"string"},
  {"name":"duration","type":"uint256"},{"name":"releaseDate","type":"uint256"},{"name":"ipfsHash","type":"string"},
  {"name":"price","type":"uint256"},{"name":"tokenURI","type":"string"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approveFilm","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"purchaseFilm","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"transferWithRoyalty","stateMutability":"payable","inputs":[
  {"name":"tokenId","type":"uint256"},{"name":"to","type":"address"},{"name":"price","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],
  "outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"getFilmMetadata","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],
  "outputs":[{"name":"","type":"tuple","internalType":"struct FilmNFT.FilmMetadata","components":[
   {"name":"title","type":"string"},{"name":"description","type":"string"},{"name":"genre","type":"string"},
   {"name":"duration","type":"uint256"},{"name":"releaseDate","type":"uint256"},{"name":"ipfsHash","type":"string"},
   {"name":"price","type":"uint256"},{"name":"producer","type":"address"},{"name":"approved","type":"bool"}]}]},
 {"type":"function","name":"royaltyInfo","stateMutability":"view","inputs":[
  {"name":"tokenId","type":"uint256"},{"name":"salePrice","type":"uint256"}],
  "outputs":[{"name":"receiver","type":"address"},{"name":"royaltyAmount","type":"uint256"}]},
 {"type":"event","name":"FilmCreated","anonymous":false,"inputs":[
  {"name":"tokenId","type":"uint256","indexed":true},{"name":"producer","type":"address","indexed":true},
  {"name":"title","type":"string","indexed":false},{"name":"price","type":"uint256","indexed":false}]}
]`

const contentABIJSON = `[
 {"type":"function","name":"createContent","stateMutability":"nonpayable","inputs":[
  {"name":"title","type":"string"},{"name":"ipfsHash","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"recordView","stateMutability":"nonpayable","inputs":[{"name":"contentId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"distributeRevenue","stateMutability":"payable","inputs":[{"name":"contentId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"getContent","stateMutability":"view","inputs":[{"name":"contentId","type":"uint256"}],
  "outputs":[{"name":"","type":"tuple","internalType":"struct ContentRegistry.Content","components":[
   {"name":"id","type":"uint256"},{"name":"producer","type":"address"},{"name":"title","type":"string"},
   {"name":"ipfsHash","type":"string"},{"name":"views","type":"uint256"},{"name":"totalRevenue","type":"uint256"},
   {"name":"active","type":"bool"}]}]},
 {"type":"event","name":"ContentCreated","anonymous":false,"inputs":[
  {"name":"contentId","type":"uint256","indexed":true},{"name":"producer","type":"address","indexed":true},
  {"name":"title","type":"string","indexed":false},{"name":"ipfsHash","type":"string","indexed":false}]}
]`

const erc20ABIJSON = `[
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
  {"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[
  {"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[
  {"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"event","name":"Transfer","anonymous":false,"inputs":[
  {"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},
  {"name":"value","type":"uint256","indexed":false}]}
]`

var (
	FilmABI    = mustParseABI(filmABIJSON)
	ContentABI = mustParseABI(contentABIJSON)
	ERC20ABI   = mustParseABI(erc20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid contract ABI: " + err.Error())
	}
	return parsed
}
